package core

// Logger is any service that can log messages with optional structured arguments.
// Implementations may special-case a user value in args to tag the acting user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
