package core

// Logger logs messages locally and reports them to the error tracker.
// args may contain an error, a map[string]interface{} of extras and the logged in user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person identifies the user a log entry is about.
type Person struct {
	ID       string
	Username string
	Email    string
}
