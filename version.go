package go_mtpc

// Library version information.
//
// The transport core does not negotiate protocol versions on the wire;
// MTProto layer selection happens during the key-exchange handshake, which
// is owned by the caller. This is purely the library's own version string.

const (
	// VERSION is the go-mtpc library version.
	VERSION = "0.1.0"
)

// LibraryVersion returns the go-mtpc library version string.
func LibraryVersion() string {
	return VERSION
}
