// Package go_mtpc AES-256-IGE encryption for MTProto packet framing.
//
// IGE (Infinite Garble Extension) is a block-cipher mode with bidirectional
// error propagation, used by MTProto 2.0 instead of plain CBC. The IV is
// split into two halves:
//
//	IV = iv1 || iv2  (16 bytes each)
//
//	Encryption: C[i] = E(K, P[i] ^ C[i-1]) ^ iv2, with C[-1] = iv1
//	Decryption: P[i] = D(K, C[i] ^ iv2) ^ C[i-1], with C[-1] = iv1
//
// iv2 is held constant across blocks within one call; iv1 is replaced with
// the last ciphertext block after encryption so that a subsequent call can
// chain onto the same stream.
//
// CAUTION: the in-place entry points mutate the IV as a chaining side
// effect. Decrypting data encrypted by a prior call requires the IV's
// ORIGINAL value, not the mutated one. Reusing a mutated IV for an
// unrelated call produces garbage. Use IgeEncryptCopy/IgeDecryptCopy when
// no chaining is wanted.
package go_mtpc

import (
	"crypto/aes"
)

// checkIgeArgs validates key, IV and buffer lengths before any cipher
// state is touched. A failed check leaves data untouched.
func checkIgeArgs(key, iv, data []byte) error {
	if len(key) != AES_KEY_SIZE {
		return &InvalidKeyLengthError{Actual: len(key), Expected: AES_KEY_SIZE}
	}
	if len(iv) != AES_IGE_IV_SIZE {
		return &InvalidKeyLengthError{Actual: len(iv), Expected: AES_IGE_IV_SIZE}
	}
	if len(data) == 0 {
		return ErrEmptyData
	}
	if len(data)%AES_BLOCK_SIZE != 0 {
		return &InvalidBlockSizeError{Actual: len(data), Expected: AES_BLOCK_SIZE}
	}
	return nil
}

func xorInplace(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}

// IgeEncrypt encrypts data in place using AES-256-IGE.
//
// key must be 32 bytes, iv must be 32 bytes (iv1 || iv2), and data must be
// a positive multiple of 16 bytes. On success iv1 is overwritten with the
// final ciphertext block so the caller can chain another IgeEncrypt on the
// same logical stream. On failure neither data nor iv is modified.
func IgeEncrypt(key, iv, data []byte) error {
	if err := checkIgeArgs(key, iv, data); err != nil {
		return err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return &InvalidKeyLengthError{Actual: len(key), Expected: AES_KEY_SIZE}
	}

	iv2 := iv[AES_BLOCK_SIZE:]

	var prev [AES_BLOCK_SIZE]byte
	copy(prev[:], iv[:AES_BLOCK_SIZE])

	var tmp [AES_BLOCK_SIZE]byte
	for off := 0; off < len(data); off += AES_BLOCK_SIZE {
		chunk := data[off : off+AES_BLOCK_SIZE]

		copy(tmp[:], chunk)
		xorInplace(tmp[:], prev[:])
		block.Encrypt(tmp[:], tmp[:])
		xorInplace(tmp[:], iv2)

		copy(chunk, tmp[:])
		copy(prev[:], chunk)
	}

	// Expose the last ciphertext block through iv1 for chaining.
	copy(iv[:AES_BLOCK_SIZE], prev[:])

	return nil
}

// IgeDecrypt decrypts data in place using AES-256-IGE.
//
// The iv must hold the ORIGINAL value used for encryption, not the value
// left behind by a prior IgeEncrypt call. On failure data is untouched.
func IgeDecrypt(key, iv, data []byte) error {
	if err := checkIgeArgs(key, iv, data); err != nil {
		return err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return &InvalidKeyLengthError{Actual: len(key), Expected: AES_KEY_SIZE}
	}

	iv2 := iv[AES_BLOCK_SIZE:]

	var prev [AES_BLOCK_SIZE]byte
	copy(prev[:], iv[:AES_BLOCK_SIZE])

	var cur, tmp [AES_BLOCK_SIZE]byte
	for off := 0; off < len(data); off += AES_BLOCK_SIZE {
		chunk := data[off : off+AES_BLOCK_SIZE]

		copy(cur[:], chunk)

		copy(tmp[:], chunk)
		xorInplace(tmp[:], iv2)
		block.Decrypt(tmp[:], tmp[:])
		xorInplace(tmp[:], prev[:])

		copy(chunk, tmp[:])
		prev = cur
	}

	return nil
}

// IgeEncryptCopy encrypts data into a fresh buffer without mutating either
// the input or the caller's IV. Use this when no chaining is wanted.
func IgeEncryptCopy(key, iv, data []byte) ([]byte, error) {
	if err := checkIgeArgs(key, iv, data); err != nil {
		return nil, err
	}

	ivCopy := acquireBuffer(AES_IGE_IV_SIZE)
	defer releaseBuffer(ivCopy)
	copy(ivCopy, iv)

	out := make([]byte, len(data))
	copy(out, data)
	if err := IgeEncrypt(key, ivCopy, out); err != nil {
		return nil, err
	}
	return out, nil
}

// IgeDecryptCopy decrypts data into a fresh buffer without mutating either
// the input or the caller's IV.
func IgeDecryptCopy(key, iv, data []byte) ([]byte, error) {
	if err := checkIgeArgs(key, iv, data); err != nil {
		return nil, err
	}

	ivCopy := acquireBuffer(AES_IGE_IV_SIZE)
	defer releaseBuffer(ivCopy)
	copy(ivCopy, iv)

	out := make([]byte, len(data))
	copy(out, data)
	if err := IgeDecrypt(key, ivCopy, out); err != nil {
		return nil, err
	}
	return out, nil
}
