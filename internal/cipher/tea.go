package cipher

// TEA and XTEA operate on a 64-bit block (two uint32 words) under a
// 128-bit (4x uint32) key (spec.md §4.7, VAG/PSA).

const teaDelta = 0x9E3779B9

// XTEADecrypt runs the standard 32-round XTEA decryption.
func XTEADecrypt(v0, v1 uint32, key [4]uint32) (uint32, uint32) {
	const rounds = 32
	sum := uint32(teaDelta)
	sum *= rounds
	for i := 0; i < rounds; i++ {
		v1 -= ((v0<<4 ^ v0>>5) + v0) ^ (sum + key[(sum>>11)&3])
		sum -= teaDelta
		v0 -= ((v1<<4 ^ v1>>5) + v1) ^ (sum + key[sum&3])
	}
	return v0, v1
}

// XTEAEncrypt is the inverse of XTEADecrypt.
func XTEAEncrypt(v0, v1 uint32, key [4]uint32) (uint32, uint32) {
	const rounds = 32
	var sum uint32
	for i := 0; i < rounds; i++ {
		v0 += ((v1<<4 ^ v1>>5) + v1) ^ (sum + key[sum&3])
		sum += teaDelta
		v1 += ((v0<<4 ^ v0>>5) + v0) ^ (sum + key[(sum>>11)&3])
	}
	return v0, v1
}

// TEADecryptSchedule runs a bounded number of TEA rounds with an
// explicit starting sum, used by the PSA decoder's bounded
// brute-force over small key-schedule ranges (spec.md §4.7). Both
// halves of a round are updated against the same running sum, which
// is then decremented once per round (matches the ProtoPirate PSA
// port's teaDecrypt, a variant ordering of the standard TEA round).
func TEADecryptSchedule(v0, v1 uint32, key [4]uint32, rounds int) (uint32, uint32) {
	sum := uint32(teaDelta * uint32(rounds))
	for i := 0; i < rounds; i++ {
		v1 -= ((v0 << 4) + key[2]) ^ (v0 + sum) ^ ((v0 >> 5) + key[3])
		v0 -= ((v1 << 4) + key[0]) ^ (v1 + sum) ^ ((v1 >> 5) + key[1])
		sum -= teaDelta
	}
	return v0, v1
}
