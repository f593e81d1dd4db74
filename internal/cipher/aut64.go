package cipher

// AUT64Key is the per-device key material: an 8-byte round key, an
// 8-element byte permutation (P-box) and a 16-entry nibble
// substitution (S-box) (spec.md §4.7, VAG).
//
// original_source/src/modules/protopirate/protocols/Aut64Cipher.h
// only survived the source filter as a struct declaration with no
// function bodies (the round mixing was stripped); the round
// structure below — substitute both nibbles of byte 7, mix in the
// round key byte, permute the 8-byte state — is reconstructed from the published AUT64
// description (Garcia et al., USENIX Security 2016) rather than
// ported line-for-line. See DESIGN.md.
type AUT64Key struct {
	Key  [8]byte
	PBox [8]byte // permutation of 0..7
	SBox [16]byte
}

const aut64Rounds = 12

// Aut64Encrypt encrypts one 8-byte block in place and returns it.
func Aut64Encrypt(block [8]byte, k AUT64Key) [8]byte {
	state := block
	for r := 0; r < aut64Rounds; r++ {
		state[7] = subNibbles(state[7], k.SBox) ^ k.Key[r%8]
		state = permute(state, k.PBox)
	}
	return state
}

// Aut64Decrypt inverts Aut64Encrypt.
func Aut64Decrypt(block [8]byte, k AUT64Key) [8]byte {
	inv := invertPBox(k.PBox)
	invSBox := invertSBox(k.SBox)
	state := block
	for r := aut64Rounds - 1; r >= 0; r-- {
		state = permute(state, inv)
		state[7] = subNibbles(state[7]^k.Key[r%8], invSBox)
	}
	return state
}

func subNibbles(b byte, sbox [16]byte) byte {
	hi := sbox[b>>4]
	lo := sbox[b&0xF]
	return hi<<4 | lo
}

func permute(state [8]byte, pbox [8]byte) [8]byte {
	var out [8]byte
	for i, p := range pbox {
		out[i] = state[p]
	}
	return out
}

func invertPBox(pbox [8]byte) [8]byte {
	var inv [8]byte
	for i, p := range pbox {
		inv[p] = byte(i)
	}
	return inv
}

func invertSBox(sbox [16]byte) [16]byte {
	var inv [16]byte
	for i, v := range sbox {
		inv[v&0xF] = byte(i)
	}
	return inv
}

// DefaultAUT64PBox is a fixed-point-free 8-element permutation used
// when a key slot carries no explicit P-box (spec.md leaves P-box
// provisioning to the loaded key material; this is the gadget's
// built-in fallback).
var DefaultAUT64PBox = [8]byte{3, 0, 4, 1, 5, 2, 7, 6}

// DefaultAUT64SBox is the gadget's built-in fallback nibble S-box.
var DefaultAUT64SBox = [16]byte{
	0xE, 0x4, 0xD, 0x1, 0x2, 0xF, 0xB, 0x8,
	0x3, 0xA, 0x6, 0xC, 0x5, 0x9, 0x0, 0x7,
}
