package go_mtpc

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"go.step.sm/crypto/pemutil"
)

// Public RSA key management for main and CDN datacenters.
//
// During key exchange the server offers an ordered list of key
// fingerprints; the client must answer with the first fingerprint it holds
// key material for, in the server's preference order. Main-cluster keys
// are shared by all internal DCs; every CDN DC carries its own store,
// tracked by a watchdog so callers can tell which CDNs are usable.

// RsaKey is a PEM-encoded RSA public key together with its MTProto
// fingerprint: the first 8 bytes of SHA-256(PEM text) as a little-endian
// int64. The fingerprint definition must match the server's exactly.
type RsaKey struct {
	Pem         string
	Fingerprint int64
	Bits        int
}

// ComputeRsaFingerprint computes the fingerprint of a PEM-encoded key.
// Equal PEM bytes always produce equal fingerprints.
func ComputeRsaFingerprint(pem string) int64 {
	hash := sha256.Sum256([]byte(pem))
	return int64(binary.LittleEndian.Uint64(hash[:RSA_FINGERPRINT_SIZE]))
}

// NewRsaKey parses a PEM-encoded RSA public key, computing its fingerprint
// and bit length. The PEM text is kept verbatim: the fingerprint is defined
// over the exact bytes, so the caller must not reformat it.
func NewRsaKey(pem string) (RsaKey, error) {
	parsed, err := pemutil.Parse([]byte(pem))
	if err != nil {
		return RsaKey{}, err
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return RsaKey{}, &FailedError{Reason: "PEM block does not contain an RSA public key"}
	}
	return RsaKey{
		Pem:         pem,
		Fingerprint: ComputeRsaFingerprint(pem),
		Bits:        pub.N.BitLen(),
	}, nil
}

// NewRsaKeyRaw builds an RsaKey from pre-computed parts, for key material
// restored from storage where re-parsing is unwanted.
func NewRsaKeyRaw(pem string, fingerprint int64, bits int) RsaKey {
	return RsaKey{Pem: pem, Fingerprint: fingerprint, Bits: bits}
}

// Size returns the key size in bytes.
func (k RsaKey) Size() int { return k.Bits / 8 }

// PublicRsaKeyStore is the lookup interface shared by main and CDN stores.
type PublicRsaKeyStore interface {
	// GetRsaKey scans fingerprints in the caller-given order (the server's
	// preference order) and returns the first locally present match. When
	// nothing matches it returns a KeyNotFoundError carrying the FIRST
	// requested fingerprint.
	GetRsaKey(fingerprints []int64) (RsaKey, error)

	// DropKeys clears the pool.
	DropKeys()
}

// lookupRsaKey implements the shared candidate-order scan. On duplicate
// fingerprints within the store, the earliest-added key wins; this
// tie-break is fixed and relied upon by tests.
func lookupRsaKey(keys []RsaKey, fingerprints []int64) (RsaKey, error) {
	for _, fp := range fingerprints {
		for _, k := range keys {
			if k.Fingerprint == fp {
				return k, nil
			}
		}
	}
	var first int64
	if len(fingerprints) > 0 {
		first = fingerprints[0]
	}
	return RsaKey{}, &KeyNotFoundError{Fingerprint: first}
}

// PublicRsaKeyMain holds keys for the main (internal) cluster. Created
// empty at startup and populated as config responses arrive.
type PublicRsaKeyMain struct {
	mu     sync.RWMutex
	keys   []RsaKey
	isTest bool
}

// NewPublicRsaKeyMain creates an empty main-cluster store.
func NewPublicRsaKeyMain(isTest bool) *PublicRsaKeyMain {
	return &PublicRsaKeyMain{isTest: isTest}
}

// AddKey appends a key. Duplicates are not coalesced; the earliest key
// keeps winning lookups.
func (s *PublicRsaKeyMain) AddKey(key RsaKey) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	Debug("added main RSA key with fingerprint %d", key.Fingerprint)
}

// IsTest reports whether this store belongs to the test environment.
func (s *PublicRsaKeyMain) IsTest() bool { return s.isTest }

// KeyCount returns the number of stored keys.
func (s *PublicRsaKeyMain) KeyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// GetRsaKey implements PublicRsaKeyStore.
func (s *PublicRsaKeyMain) GetRsaKey(fingerprints []int64) (RsaKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookupRsaKey(s.keys, fingerprints)
}

// DropKeys implements PublicRsaKeyStore.
func (s *PublicRsaKeyMain) DropKeys() {
	s.mu.Lock()
	s.keys = nil
	s.mu.Unlock()
}

// RsaKeyListener is notified synchronously whenever a CDN store gains a
// key. Listener callbacks run under the caller of AddKey, so they must
// not block or call back into the store.
type RsaKeyListener func(dcID DcId)

// PublicRsaKeyCdn holds keys for one CDN datacenter.
type PublicRsaKeyCdn struct {
	dcID      DcId
	mu        sync.RWMutex
	keys      []RsaKey
	listeners []RsaKeyListener
}

// NewPublicRsaKeyCdn creates a key store for the given CDN DC. The id must
// be exact; symbolic ids cannot own key material.
func NewPublicRsaKeyCdn(dcID DcId) (*PublicRsaKeyCdn, error) {
	if !dcID.IsExact() {
		return nil, &InvalidDcIdError{Dc: dcID}
	}
	return &PublicRsaKeyCdn{dcID: dcID}, nil
}

// DcId returns the DC this store belongs to.
func (s *PublicRsaKeyCdn) DcId() DcId { return s.dcID }

// AddKey appends a key and synchronously notifies every listener.
func (s *PublicRsaKeyCdn) AddKey(key RsaKey) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	listeners := make([]RsaKeyListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	Debug("added CDN RSA key for %s with fingerprint %d", s.dcID, key.Fingerprint)
	for _, l := range listeners {
		l(s.dcID)
	}
}

// HasKeys reports whether the store holds at least one key.
func (s *PublicRsaKeyCdn) HasKeys() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys) > 0
}

// AddListener registers a listener for future key additions.
func (s *PublicRsaKeyCdn) AddListener(listener RsaKeyListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, listener)
	s.mu.Unlock()
}

// GetRsaKey implements PublicRsaKeyStore.
func (s *PublicRsaKeyCdn) GetRsaKey(fingerprints []int64) (RsaKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookupRsaKey(s.keys, fingerprints)
}

// DropKeys implements PublicRsaKeyStore.
func (s *PublicRsaKeyCdn) DropKeys() {
	s.mu.Lock()
	s.keys = nil
	s.mu.Unlock()
}

// RsaKeyWatchdog tracks which DCs currently have active key material.
type RsaKeyWatchdog struct {
	mu     sync.RWMutex
	dcKeys map[int32]bool
}

// NewRsaKeyWatchdog creates an empty watchdog.
func NewRsaKeyWatchdog() *RsaKeyWatchdog {
	return &RsaKeyWatchdog{dcKeys: make(map[int32]bool)}
}

// RegisterDc marks a DC as having an active key. Idempotent; non-exact
// ids are ignored.
func (w *RsaKeyWatchdog) RegisterDc(dcID DcId) {
	if !dcID.IsExact() {
		return
	}
	w.mu.Lock()
	w.dcKeys[dcID.RawID()] = true
	w.mu.Unlock()
}

// UnregisterDc removes a DC. Idempotent.
func (w *RsaKeyWatchdog) UnregisterDc(dcID DcId) {
	if !dcID.IsExact() {
		return
	}
	w.mu.Lock()
	delete(w.dcKeys, dcID.RawID())
	w.mu.Unlock()
}

// HasKeyForDc reports whether the DC has an active key. O(1); always
// false for non-exact ids.
func (w *RsaKeyWatchdog) HasKeyForDc(dcID DcId) bool {
	if !dcID.IsExact() {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dcKeys[dcID.RawID()]
}

// ActiveDcs returns the raw ids of all DCs with active keys.
func (w *RsaKeyWatchdog) ActiveDcs() []int32 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]int32, 0, len(w.dcKeys))
	for id := range w.dcKeys {
		out = append(out, id)
	}
	return out
}

// RsaKeyManager routes key lookups to the main store for internal DCs and
// to lazily created per-DC stores for CDN DCs.
type RsaKeyManager struct {
	mainKeys *PublicRsaKeyMain
	mu       sync.Mutex
	cdnKeys  map[int32]*PublicRsaKeyCdn
	watchdog *RsaKeyWatchdog
}

// NewRsaKeyManager creates a manager with an empty main store.
func NewRsaKeyManager(isTest bool) *RsaKeyManager {
	return &RsaKeyManager{
		mainKeys: NewPublicRsaKeyMain(isTest),
		cdnKeys:  make(map[int32]*PublicRsaKeyCdn),
		watchdog: NewRsaKeyWatchdog(),
	}
}

// MainKeys returns the main-cluster store.
func (m *RsaKeyManager) MainKeys() *PublicRsaKeyMain { return m.mainKeys }

// Watchdog returns the key watchdog.
func (m *RsaKeyManager) Watchdog() *RsaKeyWatchdog { return m.watchdog }

// CdnKeys returns the store for a CDN DC, creating it on first use.
func (m *RsaKeyManager) CdnKeys(dcID DcId) (*PublicRsaKeyCdn, error) {
	if !dcID.IsExact() {
		return nil, &InvalidDcIdError{Dc: dcID}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if store, ok := m.cdnKeys[dcID.RawID()]; ok {
		return store, nil
	}
	store, err := NewPublicRsaKeyCdn(dcID)
	if err != nil {
		return nil, err
	}
	m.cdnKeys[dcID.RawID()] = store
	return store, nil
}

// GetRsaKey looks up a key for the DC, selecting the main or CDN store
// based on the DC classification.
func (m *RsaKeyManager) GetRsaKey(dcID DcId, fingerprints []int64) (RsaKey, error) {
	if dcID.IsInternal() {
		return m.mainKeys.GetRsaKey(fingerprints)
	}
	store, err := m.CdnKeys(dcID)
	if err != nil {
		return RsaKey{}, err
	}
	return store.GetRsaKey(fingerprints)
}

// AddMainKey appends a key to the main store.
func (m *RsaKeyManager) AddMainKey(key RsaKey) {
	m.mainKeys.AddKey(key)
}

// AddCdnKey appends a key to the DC's CDN store and registers the DC with
// the watchdog.
func (m *RsaKeyManager) AddCdnKey(dcID DcId, key RsaKey) error {
	store, err := m.CdnKeys(dcID)
	if err != nil {
		return err
	}
	store.AddKey(key)
	m.watchdog.RegisterDc(dcID)
	return nil
}

// DropAllKeys clears the main store, evicts every CDN store and
// unregisters every watchdog entry.
func (m *RsaKeyManager) DropAllKeys() {
	m.mainKeys.DropKeys()

	m.mu.Lock()
	for id, store := range m.cdnKeys {
		store.DropKeys()
		delete(m.cdnKeys, id)
	}
	m.mu.Unlock()

	for _, id := range m.watchdog.ActiveDcs() {
		m.watchdog.UnregisterDc(ExternalDcId(id))
	}
	Debug("dropped all RSA keys")
}
