package go_mtpc

import (
	"errors"
	"fmt"
	"time"
)

// Standard MTProto Transport Error Types
//
// These errors follow Go 1.13+ error wrapping conventions and can be
// checked using errors.Is() and errors.As(). All errors include context
// about the operation that failed and the underlying cause.
//
// Design rationale:
// - Use sentinel errors for common, expected error conditions
// - Use error types for errors that need additional context
// - All errors are safe for error wrapping with fmt.Errorf("%w", err)

// Sentinel errors for common transport failures
var (
	// ErrEmptyData indicates an AES-IGE call was given a zero-length buffer.
	// IGE operates on whole 16-byte blocks; an empty buffer is always a caller bug.
	ErrEmptyData = errors.New("mtpc: cannot encrypt/decrypt empty data")

	// ErrNoNetwork indicates the global network flag is down.
	// RequestRawConnection fails with this before any I/O is attempted.
	ErrNoNetwork = errors.New("mtpc: no network")

	// ErrConnectionClosed indicates the TCP connection to the datacenter was closed.
	ErrConnectionClosed = errors.New("mtpc: connection closed")

	// ErrSessionClosed indicates an operation was attempted on a closed session.
	// Close is terminal; a closed session never becomes usable again.
	ErrSessionClosed = errors.New("mtpc: session closed")

	// ErrDispatcherClosed indicates a query was submitted to a silently closed
	// dispatcher. CloseSilent is terminal; the query is discarded.
	ErrDispatcherClosed = errors.New("mtpc: delay dispatcher closed")

	// ErrConnectionStale indicates a raw connection exceeded the staleness
	// threshold and must be discarded rather than reused.
	ErrConnectionStale = errors.New("mtpc: raw connection is stale")
)

// InvalidBlockSizeError reports an AES-IGE buffer whose length is not a
// positive multiple of the cipher block size. It is returned before any
// cipher state is touched; the buffer is never partially written.
type InvalidBlockSizeError struct {
	Actual   int
	Expected int
}

func (e *InvalidBlockSizeError) Error() string {
	return fmt.Sprintf("mtpc: invalid block size: data length (%d) is not a multiple of %d", e.Actual, e.Expected)
}

// InvalidKeyLengthError reports key material of the wrong size, e.g. an
// auth key that is not 256 bytes or an AES key that is not 32 bytes.
type InvalidKeyLengthError struct {
	Actual   int
	Expected int
}

func (e *InvalidKeyLengthError) Error() string {
	return fmt.Sprintf("mtpc: invalid key length: expected %d, got %d", e.Expected, e.Actual)
}

// KeyNotFoundError indicates none of the server-offered RSA fingerprints
// matched a locally stored key. Fingerprint carries the first fingerprint
// the server asked for, which is what the application should request a
// refresh against.
type KeyNotFoundError struct {
	Fingerprint int64
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("mtpc: no RSA key found for fingerprint %d", e.Fingerprint)
}

// InvalidDcIdError indicates a DC id that is not usable in the requested
// role, e.g. a CDN key store created for a non-exact DC id.
type InvalidDcIdError struct {
	Dc DcId
}

func (e *InvalidDcIdError) Error() string {
	return fmt.Sprintf("mtpc: invalid DC id: %s", e.Dc)
}

// NoDcOptionsError indicates no known endpoint satisfies the connection
// constraints for the target DC. The application should refresh its DC
// option tables.
type NoDcOptionsError struct {
	Dc DcId
}

func (e *NoDcOptionsError) Error() string {
	return fmt.Sprintf("mtpc: no DC options available for %s", e.Dc)
}

// TimeoutError indicates a connection attempt exceeded the fixed connect
// window. Window is the configured bound, not the time actually elapsed.
type TimeoutError struct {
	Window time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("mtpc: connection timeout after %s", e.Window)
}

// SocketError wraps a raw socket failure during connection establishment.
type SocketError struct {
	Reason string
	Err    error
}

func (e *SocketError) Error() string {
	return fmt.Sprintf("mtpc: socket error: %s", e.Reason)
}

func (e *SocketError) Unwrap() error { return e.Err }

// ProxyError wraps a failure inside the proxy layer (SOCKS5 handshake,
// proxy dial) as opposed to the target socket itself.
type ProxyError struct {
	Reason string
	Err    error
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("mtpc: proxy error: %s", e.Reason)
}

func (e *ProxyError) Unwrap() error { return e.Err }

// SslError wraps a TLS failure on transports that tunnel through TLS.
type SslError struct {
	Reason string
	Err    error
}

func (e *SslError) Error() string {
	return fmt.Sprintf("mtpc: ssl error: %s", e.Reason)
}

func (e *SslError) Unwrap() error { return e.Err }

// FailedError is the catch-all connection failure with a reason string,
// used where no more specific error type applies.
type FailedError struct {
	Reason string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("mtpc: connection failed: %s", e.Reason)
}
