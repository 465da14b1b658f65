package go_mtpc

import "time"

// MTProto Transport Constants
//
// This file contains the fixed limits and windows of the transport/session
// core. Application-level protocol constants (TL constructors, RPC layout)
// are intentionally NOT defined here: the core treats query payloads as
// opaque bytes, and applications own their own schema.

// Datacenter identification
const (
	// MAX_RAW_DC_ID is the largest raw DC id the directory accepts.
	MAX_RAW_DC_ID int32 = 1000

	DC_ID_EMPTY   int32 = 0
	DC_ID_MAIN    int32 = -1
	DC_ID_INVALID int32 = -2
)

// Connection management
const (
	// CONNECT_TIMEOUT bounds a single raw-connection attempt. Exceeding it
	// yields a typed TimeoutError, never a hang.
	CONNECT_TIMEOUT = 10 * time.Second

	// CONNECTION_MAX_AGE is the staleness threshold: a RawConnection older
	// than this must be discarded even if its socket is still open.
	CONNECTION_MAX_AGE = 5 * time.Minute
)

// Session load management
const (
	// SESSION_HIGH_LOAD_THRESHOLD is the number of sent-but-unacknowledged
	// queries above which a session reports high load. This is a
	// backpressure signal only; Send never fails.
	SESSION_HIGH_LOAD_THRESHOLD = 1024
)

// Cryptography
const (
	// AES_BLOCK_SIZE is the AES block size in bytes. IGE buffers must be a
	// positive multiple of this.
	AES_BLOCK_SIZE = 16

	// AES_KEY_SIZE is the AES-256 key size in bytes.
	AES_KEY_SIZE = 32

	// AES_IGE_IV_SIZE is the IGE IV size in bytes (iv1 || iv2).
	AES_IGE_IV_SIZE = 32

	// AUTH_KEY_SIZE is the MTProto authorization key size in bytes.
	AUTH_KEY_SIZE = 256

	// MSG_KEY_SIZE is the MTProto message key size in bytes.
	MSG_KEY_SIZE = 16

	// RSA_FINGERPRINT_SIZE is the number of SHA-256 prefix bytes forming a
	// key fingerprint.
	RSA_FINGERPRINT_SIZE = 8
)

// Delay dispatching
const (
	// DEFAULT_DISPATCH_DELAY is used for queries submitted without an
	// explicit delay.
	DEFAULT_DISPATCH_DELAY = time.Second
)

// Changes processing
const (
	// CHANGES_COMPACT_MIN_READY is the minimum number of delivered entries
	// before the processor considers compacting its backlog.
	CHANGES_COMPACT_MIN_READY = 5
)

// Logger Level Constants
const (
	DEBUG   = 1 << 4
	INFO    = 1 << 5
	WARNING = 1 << 6
	ERROR   = 1 << 7
	FATAL   = 1 << 8

	LEVEL_MASK = 0x000001f0
)
