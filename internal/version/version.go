// Package version хранит сведения о сборке settlement-service,
// подставляемые через -ldflags при сборке релиза.
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки.
func Info() (v, c, d string) { return version, commit, date }

// String — строка идентификации сборки для стартового лога сервиса.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}
