// Package health отдаёт состояние сервиса расчёта продаж: liveness,
// readiness и сводный отчёт по зарегистрированным зависимостям
// (postgres, kafka, redis — что включено конфигурацией).
package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const serviceName = "settlement-service"

// Status — состояние зависимости или сервиса в целом.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check — результат одной проверки зависимости.
type Check struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Detail    string `json:"detail,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// Report — сводный ответ /health.
type Report struct {
	Service   string    `json:"service"`
	Version   string    `json:"version,omitempty"`
	Status    Status    `json:"status"`
	Uptime    string    `json:"uptime"`
	CheckedAt time.Time `json:"checked_at"`
	Checks    []Check   `json:"checks,omitempty"`
}

// Checker выполняет одну проверку зависимости.
type Checker interface {
	Check() Check
}

// Handler обслуживает health-эндпоинты сервиса.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	version  string
	started  time.Time
}

// NewHandler создаёт health handler с версией сборки.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers: make(map[string]Checker),
		version:  version,
		started:  time.Now(),
	}
}

// RegisterChecker добавляет проверку зависимости. Регистрация
// выполняется при старте процесса, до первого запроса.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// runChecks выполняет все проверки и сводит общий статус: любая
// unhealthy-зависимость делает сервис unhealthy, degraded понижает
// healthy до degraded.
func (h *Handler) runChecks() ([]Check, Status) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	h.mu.RUnlock()

	sort.Strings(names)

	overall := StatusHealthy
	checks := make([]Check, 0, len(names))
	for _, name := range names {
		check := checkers[name].Check()
		if check.Name == "" {
			check.Name = name
		}
		checks = append(checks, check)

		switch check.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return checks, overall
}

// ServeHTTP отдаёт сводный отчёт; unhealthy — это 503.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	checks, overall := h.runChecks()

	report := Report{
		Service:   serviceName,
		Version:   h.version,
		Status:    overall,
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
		CheckedAt: time.Now().UTC(),
		Checks:    checks,
	}

	code := http.StatusOK
	if overall == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// LivenessHandler отвечает 200, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler сигнализирует готовность принимать трафик:
// degraded-зависимости не снимают сервис с балансировки.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	if _, overall := h.runChecks(); overall == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// SimpleChecker оборачивает функцию проверки в Checker с замером
// длительности.
type SimpleChecker struct {
	name    string
	checkFn func() error
}

// NewSimpleChecker создаёт проверку из функции.
func NewSimpleChecker(name string, checkFn func() error) *SimpleChecker {
	return &SimpleChecker{name: name, checkFn: checkFn}
}

// Check выполняет проверку.
func (c *SimpleChecker) Check() Check {
	start := time.Now()
	err := c.checkFn()

	check := Check{
		Name:      c.name,
		Status:    StatusHealthy,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Detail = err.Error()
	}
	return check
}

var _ Checker = (*SimpleChecker)(nil)
