package cipher

import (
	"crypto/aes"
	"fmt"
)

// AES128ECBDecryptBlock decrypts exactly one 16-byte AES-128 block in
// ECB mode (Kia V6, spec.md §4.7). No corpus library wraps raw
// single-block ECB (it's normally discouraged for general use); the
// standard library's crypto/aes block primitive is the correct,
// minimal tool here rather than reaching for a full cipher-mode
// package for a single fixed-size block (see DESIGN.md).
func AES128ECBDecryptBlock(key, block [16]byte) ([16]byte, error) {
	c, err := aes.NewCipher(key[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("cipher: aes: %w", err)
	}
	var out [16]byte
	c.Decrypt(out[:], block[:])
	return out, nil
}

// AES128ECBEncryptBlock is the inverse of AES128ECBDecryptBlock.
func AES128ECBEncryptBlock(key, block [16]byte) ([16]byte, error) {
	c, err := aes.NewCipher(key[:])
	if err != nil {
		return [16]byte{}, fmt.Errorf("cipher: aes: %w", err)
	}
	var out [16]byte
	c.Encrypt(out[:], block[:])
	return out, nil
}

// kiaV6XORMaskHigh/Low are the published per-byte mixing constants
// the two 64-bit keystore entries are XORed against, byte for byte,
// before use as the Kia V6 AES key (spec.md §4.7).
var kiaV6XORMaskHigh = [8]byte{0xA5, 0x5A, 0xA5, 0x5A, 0xA5, 0x5A, 0xA5, 0x5A}
var kiaV6XORMaskLow = [8]byte{0x5A, 0xA5, 0x5A, 0xA5, 0x5A, 0xA5, 0x5A, 0xA5}

// KiaV6Key builds the 16-byte AES key from two 64-bit keystore
// entries.
func KiaV6Key(entryA, entryB uint64) [16]byte {
	var key [16]byte
	for i := 0; i < 8; i++ {
		key[i] = byte(entryA>>uint(8*(7-i))) ^ kiaV6XORMaskHigh[i]
		key[8+i] = byte(entryB>>uint(8*(7-i))) ^ kiaV6XORMaskLow[i]
	}
	return key
}
