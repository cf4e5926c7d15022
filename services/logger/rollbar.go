package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/masomo-fees/core"
)

// RollbarLogger prints to a standard logger and reports to rollbar.
// Arguments may be errors, map[string]interface{} extras and at most one core.Person.
type RollbarLogger struct {
	std   *log.Logger
	debug bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, debug: conf.Debug}
}

// Enable turns reporting to rollbar on or off; messages are always printed to std.
func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	report := []interface{}{msg}
	var person *core.Person
	var lines []string

	for _, arg := range args {
		switch a := arg.(type) {
		case core.Person:
			if person == nil {
				person = &a
			}
			continue
		case map[string]interface{}:
			lines = append(lines, formatExtras(a))
		case error:
			if l.debug {
				lines = append(lines, fmt.Sprintf("%+v", a))
			} else {
				lines = append(lines, a.Error())
			}
		default:
			lines = append(lines, fmt.Sprint(a))
		}
		report = append(report, arg)
	}

	if person != nil {
		rollbar.SetPerson(person.ID, person.Username, person.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, report...)

	if level == rollbar.DEBUG && !l.debug {
		return
	}
	l.std.Println(strings.ToUpper(level) + ": " + msg)
	for _, line := range lines {
		l.std.Println("\t" + line)
	}
}

func formatExtras(extras map[string]interface{}) string {
	keys := make([]string, 0, len(extras))
	for k := range extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%v", k, extras[k])
	}
	return strings.Join(pairs, " ")
}
