package core

// Logger is any service that can log messages.
// args are optional and may contain errors, maps of extra data or the current Person.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the authenticated caller in log entries.
type Person struct {
	ID       string
	Username string
	Email    string
}
