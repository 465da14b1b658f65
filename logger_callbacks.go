// LoggerCallbacks struct definition
package go_mtpc

// LoggerCallbacks provides callback functions for logging events.
// When installed via SetLoggerCallbacks, OnLog receives every log line
// the package would emit, with the caller-supplied Opaque value.
type LoggerCallbacks struct {
	Opaque interface{}
	OnLog  func(opaque interface{}, tags LoggerTags, message string)
}

// NewLoggerCallbacks creates logging callbacks with the given handler.
func NewLoggerCallbacks(opaque interface{}, onLog func(opaque interface{}, tags LoggerTags, message string)) *LoggerCallbacks {
	return &LoggerCallbacks{Opaque: opaque, OnLog: onLog}
}
