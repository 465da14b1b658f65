package go_mtpc

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
)

func encodeTestPublicKey(t *testing.T, bits int) string {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

func TestRsaFingerprintDeterministic(t *testing.T) {
	pem := "-----BEGIN PUBLIC KEY-----\nfakebody\n-----END PUBLIC KEY-----\n"
	if ComputeRsaFingerprint(pem) != ComputeRsaFingerprint(pem) {
		t.Fatal("equal PEM text must give equal fingerprints")
	}
	other := pem + "\n"
	if ComputeRsaFingerprint(pem) == ComputeRsaFingerprint(other) {
		t.Fatal("different PEM text should give different fingerprints")
	}
}

func TestNewRsaKeyParsesPem(t *testing.T) {
	pem := encodeTestPublicKey(t, 2048)
	key, err := NewRsaKey(pem)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if key.Bits != 2048 {
		t.Fatalf("expected 2048 bits, got %d", key.Bits)
	}
	if key.Size() != 256 {
		t.Fatalf("expected 256-byte key, got %d", key.Size())
	}
	if key.Fingerprint != ComputeRsaFingerprint(pem) {
		t.Fatal("fingerprint mismatch")
	}
	if key.Pem != pem {
		t.Fatal("PEM text must be kept verbatim")
	}
}

func TestNewRsaKeyRejectsGarbage(t *testing.T) {
	if _, err := NewRsaKey("not a pem"); err == nil {
		t.Fatal("expected error for non-PEM input")
	}
}

func TestMainStoreLookupOrder(t *testing.T) {
	keyA := NewRsaKeyRaw("pem-a", 100, 2048)
	keyB := NewRsaKeyRaw("pem-b", 200, 2048)

	store := NewPublicRsaKeyMain(false)
	store.AddKey(keyA)
	store.AddKey(keyB)

	// Candidate order wins, not store order: the unknown fingerprint is
	// skipped and B is matched before A.
	got, err := store.GetRsaKey([]int64{999, 200, 100})
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.Fingerprint != 200 {
		t.Fatalf("expected key B (200), got %d", got.Fingerprint)
	}
}

func TestMainStoreKeyNotFound(t *testing.T) {
	store := NewPublicRsaKeyMain(false)
	store.AddKey(NewRsaKeyRaw("pem-a", 100, 2048))

	_, err := store.GetRsaKey([]int64{42, 43})
	var notFound *KeyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected KeyNotFoundError, got %v", err)
	}
	// The error names the first requested fingerprint.
	if notFound.Fingerprint != 42 {
		t.Fatalf("expected fingerprint 42 in error, got %d", notFound.Fingerprint)
	}
}

func TestMainStoreDropKeys(t *testing.T) {
	store := NewPublicRsaKeyMain(true)
	store.AddKey(NewRsaKeyRaw("pem-a", 100, 2048))
	if store.KeyCount() != 1 {
		t.Fatalf("expected 1 key, got %d", store.KeyCount())
	}
	store.DropKeys()
	if store.KeyCount() != 0 {
		t.Fatalf("expected empty store, got %d keys", store.KeyCount())
	}
	if !store.IsTest() {
		t.Fatal("test flag lost")
	}
}

func TestCdnStoreRequiresExactDc(t *testing.T) {
	for _, dc := range []DcId{EmptyDcId(), MainDcId(), InvalidDcId()} {
		_, err := NewPublicRsaKeyCdn(dc)
		var invalid *InvalidDcIdError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidDcIdError for %s, got %v", dc, err)
		}
	}
	if _, err := NewPublicRsaKeyCdn(ExternalDcId(4)); err != nil {
		t.Fatalf("exact id rejected: %v", err)
	}
}

func TestCdnStoreNotifiesListenersSynchronously(t *testing.T) {
	store, err := NewPublicRsaKeyCdn(ExternalDcId(4))
	if err != nil {
		t.Fatalf("store creation failed: %v", err)
	}

	var notified []DcId
	store.AddListener(func(dcID DcId) {
		notified = append(notified, dcID)
	})

	store.AddKey(NewRsaKeyRaw("pem-cdn", 300, 2048))

	// AddKey returns only after listeners ran.
	if len(notified) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notified))
	}
	if notified[0].RawID() != 4 {
		t.Fatalf("notified with wrong dc: %s", notified[0])
	}
	if !store.HasKeys() {
		t.Fatal("store should report keys after AddKey")
	}
}

func TestWatchdogIdempotence(t *testing.T) {
	w := NewRsaKeyWatchdog()
	dc := ExternalDcId(4)

	w.RegisterDc(dc)
	w.RegisterDc(dc)
	if !w.HasKeyForDc(dc) {
		t.Fatal("registered dc not reported")
	}
	if len(w.ActiveDcs()) != 1 {
		t.Fatalf("expected 1 active dc, got %d", len(w.ActiveDcs()))
	}

	w.UnregisterDc(dc)
	w.UnregisterDc(dc)
	if w.HasKeyForDc(dc) {
		t.Fatal("unregistered dc still reported")
	}
}

func TestWatchdogIgnoresSymbolicIds(t *testing.T) {
	w := NewRsaKeyWatchdog()
	w.RegisterDc(MainDcId())
	w.RegisterDc(EmptyDcId())

	if w.HasKeyForDc(MainDcId()) || w.HasKeyForDc(EmptyDcId()) {
		t.Fatal("symbolic ids must never report keys")
	}
	if len(w.ActiveDcs()) != 0 {
		t.Fatal("symbolic ids must not register")
	}
}

func TestManagerRoutesByDcClass(t *testing.T) {
	m := NewRsaKeyManager(false)
	m.AddMainKey(NewRsaKeyRaw("pem-main", 100, 2048))
	if err := m.AddCdnKey(ExternalDcId(4), NewRsaKeyRaw("pem-cdn", 200, 2048)); err != nil {
		t.Fatalf("AddCdnKey failed: %v", err)
	}

	got, err := m.GetRsaKey(InternalDcId(2), []int64{100})
	if err != nil || got.Fingerprint != 100 {
		t.Fatalf("internal lookup failed: %v %+v", err, got)
	}

	got, err = m.GetRsaKey(ExternalDcId(4), []int64{200})
	if err != nil || got.Fingerprint != 200 {
		t.Fatalf("cdn lookup failed: %v %+v", err, got)
	}

	// Main keys are invisible to CDN lookups and vice versa.
	if _, err := m.GetRsaKey(ExternalDcId(4), []int64{100}); err == nil {
		t.Fatal("main key leaked into cdn store")
	}
	if _, err := m.GetRsaKey(InternalDcId(2), []int64{200}); err == nil {
		t.Fatal("cdn key leaked into main store")
	}

	if !m.Watchdog().HasKeyForDc(ExternalDcId(4)) {
		t.Fatal("cdn key addition did not register with watchdog")
	}
}

func TestManagerDropAllKeys(t *testing.T) {
	m := NewRsaKeyManager(false)
	m.AddMainKey(NewRsaKeyRaw("pem-main", 100, 2048))
	if err := m.AddCdnKey(ExternalDcId(4), NewRsaKeyRaw("pem-cdn", 200, 2048)); err != nil {
		t.Fatalf("AddCdnKey failed: %v", err)
	}

	m.DropAllKeys()

	if _, err := m.GetRsaKey(InternalDcId(2), []int64{100}); err == nil {
		t.Fatal("main key survived DropAllKeys")
	}
	if _, err := m.GetRsaKey(ExternalDcId(4), []int64{200}); err == nil {
		t.Fatal("cdn key survived DropAllKeys")
	}
	if m.Watchdog().HasKeyForDc(ExternalDcId(4)) {
		t.Fatal("watchdog entry survived DropAllKeys")
	}
}
