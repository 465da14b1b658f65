package go_mtpc

import (
	"crypto/sha1"
	"crypto/sha256"
)

// Key derivation for MTProto packet encryption.
//
// Given the 2048-bit auth key and the per-message 128-bit message key, the
// KDF produces the AES-256 key and IV that IgeEncrypt/IgeDecrypt consume.
// The offset x selects the direction: 0 for client-to-server, 8 for
// server-to-client. KDF2 is the current (MTProto 2.0, SHA-256 based)
// construction; KDF is the legacy SHA-1 based v1.0 variant kept for
// compatibility with old persisted sessions.

// KdfOutput holds a derived AES-256 key and IV pair.
type KdfOutput struct {
	AesKey [AES_KEY_SIZE]byte
	AesIv  [AES_IGE_IV_SIZE]byte
}

// KDF2 derives the AES key/IV using the MTProto 2.0 construction:
//
//	sha256_a = SHA256(msg_key + substr(auth_key, x, 36))
//	sha256_b = SHA256(substr(auth_key, 40+x, 36) + msg_key)
//
//	aes_key = sha256_a[0:8] + sha256_b[8:24] + sha256_a[24:32]
//	aes_iv  = sha256_b[0:8] + sha256_a[8:24] + sha256_b[24:32]
func KDF2(authKey []byte, msgKey []byte, x int) (KdfOutput, error) {
	var out KdfOutput
	if len(authKey) != AUTH_KEY_SIZE {
		return out, &InvalidKeyLengthError{Actual: len(authKey), Expected: AUTH_KEY_SIZE}
	}
	if len(msgKey) != MSG_KEY_SIZE {
		return out, &InvalidKeyLengthError{Actual: len(msgKey), Expected: MSG_KEY_SIZE}
	}

	var bufA [MSG_KEY_SIZE + 36]byte
	copy(bufA[:MSG_KEY_SIZE], msgKey)
	copy(bufA[MSG_KEY_SIZE:], authKey[x:x+36])
	sha256a := sha256.Sum256(bufA[:])

	var bufB [36 + MSG_KEY_SIZE]byte
	copy(bufB[:36], authKey[40+x:40+x+36])
	copy(bufB[36:], msgKey)
	sha256b := sha256.Sum256(bufB[:])

	copy(out.AesKey[0:8], sha256a[0:8])
	copy(out.AesKey[8:24], sha256b[8:24])
	copy(out.AesKey[24:32], sha256a[24:32])

	copy(out.AesIv[0:8], sha256b[0:8])
	copy(out.AesIv[8:24], sha256a[8:24])
	copy(out.AesIv[24:32], sha256b[24:32])

	return out, nil
}

// KDF derives the AES key/IV using the legacy MTProto 1.0 (SHA-1)
// construction:
//
//	sha1_a = SHA1(msg_key + substr(auth_key, x, 32))
//	sha1_b = SHA1(substr(auth_key, 32+x, 16) + msg_key + substr(auth_key, 48+x, 16))
//	sha1_c = SHA1(substr(auth_key, 64+x, 32) + msg_key)
//	sha1_d = SHA1(msg_key + substr(auth_key, 96+x, 32))
//
//	aes_key = sha1_a[0:8] + sha1_b[8:20] + sha1_c[4:16]
//	aes_iv  = sha1_a[8:20] + sha1_b[0:8] + sha1_c[16:20] + sha1_d[0:8]
func KDF(authKey []byte, msgKey []byte, x int) (KdfOutput, error) {
	var out KdfOutput
	if len(authKey) != AUTH_KEY_SIZE {
		return out, &InvalidKeyLengthError{Actual: len(authKey), Expected: AUTH_KEY_SIZE}
	}
	if len(msgKey) != MSG_KEY_SIZE {
		return out, &InvalidKeyLengthError{Actual: len(msgKey), Expected: MSG_KEY_SIZE}
	}

	h := sha1.New()
	h.Write(msgKey)
	h.Write(authKey[x : x+32])
	sha1a := h.Sum(nil)

	h.Reset()
	h.Write(authKey[32+x : 32+x+16])
	h.Write(msgKey)
	h.Write(authKey[48+x : 48+x+16])
	sha1b := h.Sum(nil)

	h.Reset()
	h.Write(authKey[64+x : 64+x+32])
	h.Write(msgKey)
	sha1c := h.Sum(nil)

	h.Reset()
	h.Write(msgKey)
	h.Write(authKey[96+x : 96+x+32])
	sha1d := h.Sum(nil)

	copy(out.AesKey[0:8], sha1a[0:8])
	copy(out.AesKey[8:20], sha1b[8:20])
	copy(out.AesKey[20:32], sha1c[4:16])

	copy(out.AesIv[0:12], sha1a[8:20])
	copy(out.AesIv[12:20], sha1b[0:8])
	copy(out.AesIv[20:24], sha1c[16:20])
	copy(out.AesIv[24:32], sha1d[0:8])

	return out, nil
}
