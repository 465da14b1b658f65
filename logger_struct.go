// Logger struct definition
package go_mtpc

// Logger provides logging functionality for the MTProto transport core
type Logger struct {
	callbacks *LoggerCallbacks
	logLevel  int
}
