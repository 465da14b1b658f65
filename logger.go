package go_mtpc

import (
	"fmt"
	"os"

	"github.com/go-i2p/logger"
)

// LoggerTags defines the type for logger tags
type LoggerTags = uint32

var log = logger.GetGoI2PLogger()

// pkgLogger backs the package-level logging helpers. Callbacks and
// level installed via SetLoggerCallbacks / SetLogLevel apply to every
// log line the package emits.
var pkgLogger = &Logger{logLevel: DEBUG}

// SetLoggerCallbacks installs callbacks that intercept all package log
// output. Pass nil to restore the default go-i2p logger.
func SetLoggerCallbacks(callbacks *LoggerCallbacks) {
	pkgLogger.callbacks = callbacks
}

// SetLogLevel sets the minimum level for package log output.
func SetLogLevel(level int) {
	pkgLogger.setLogLevel(level)
}

func (l *Logger) log(tags LoggerTags, format string, args ...interface{}) {
	if int(tags&LEVEL_MASK) < l.logLevel {
		return
	}
	message := format
	if len(args) != 0 {
		message = fmt.Sprintf(format, args...)
	}
	if l.callbacks != nil && l.callbacks.OnLog != nil {
		l.callbacks.OnLog(l.callbacks.Opaque, tags, message)
		return
	}
	switch tags & LEVEL_MASK {
	case DEBUG:
		log.Debug(message)
	case INFO, WARNING:
		log.Warn(message)
	default:
		log.Error(message)
	}
}

func (l *Logger) setLogLevel(level int) {
	switch level {
	case DEBUG, INFO, WARNING, ERROR, FATAL:
		l.logLevel = level
	default:
		l.logLevel = ERROR
	}
}

// LogInit initializes the logger with the specified level
func LogInit(level int) {
	logger.InitializeGoI2PLogger()
	pkgLogger.setLogLevel(level)

	switch level {
	case DEBUG:
		os.Setenv("DEBUG_I2P", "debug")
	case INFO:
		os.Setenv("DEBUG_I2P", "debug")
	case WARNING:
		os.Setenv("DEBUG_I2P", "warn")
	case ERROR:
		os.Setenv("DEBUG_I2P", "error")
	case FATAL:
		os.Setenv("DEBUG_I2P", "fatal")
		os.Setenv("WARNFAIL_I2P", "true")
	default:
		os.Setenv("DEBUG_I2P", "debug")
	}
}

// Debug logs a debug message with optional arguments.
func Debug(message string, args ...interface{}) {
	pkgLogger.log(DEBUG, message, args...)
}

// Info logs an info message with optional arguments.
// Note: Info maps to Warn level in the underlying logger.
func Info(message string, args ...interface{}) {
	pkgLogger.log(INFO, message, args...)
}

// Warning logs a warning message with optional arguments.
func Warning(message string, args ...interface{}) {
	pkgLogger.log(WARNING, message, args...)
}

// Error logs an error message with optional arguments.
func Error(message string, args ...interface{}) {
	pkgLogger.log(ERROR, message, args...)
}

// Fatal logs a fatal message with optional arguments.
// Note: Fatal maps to Error level in the underlying logger and sets
// WARNFAIL_I2P.
func Fatal(message string, args ...interface{}) {
	os.Setenv("WARNFAIL_I2P", "true")
	pkgLogger.log(FATAL, message, args...)
}
