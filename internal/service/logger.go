package service

// Logger interface for logging operations (Interface Segregation
// Principle). Satisfied by *log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}
