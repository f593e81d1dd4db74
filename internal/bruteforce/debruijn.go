package bruteforce

import "fmt"

// MaxDeBruijnOrder bounds the De Bruijn sequence order the attack
// engine will generate (spec.md §4.8: "n ≤ 16").
const MaxDeBruijnOrder = 16

// DeBruijnBinary generates a binary B(2,n) de Bruijn sequence using
// the classic Fredricksen–Kessler–Maiorana "prefer the smallest next
// symbol" construction: read cyclically (the last n-1 bits wrap back
// to the start), every one of the 2^n possible n-bit substrings
// appears in it exactly once. This lets the De Bruijn attack mode
// cover a protocol's full n-bit keyspace in a single continuous
// transmission instead of one frame per code.
func DeBruijnBinary(n int) ([]byte, error) {
	if n < 1 || n > MaxDeBruijnOrder {
		return nil, fmt.Errorf("bruteforce: de Bruijn order %d out of range [1,%d]", n, MaxDeBruijnOrder)
	}
	a := make([]byte, n+1)
	seq := make([]byte, 0, 1<<uint(n))
	var visit func(t, p int)
	visit = func(t, p int) {
		if t > n {
			if n%p == 0 {
				seq = append(seq, a[1:p+1]...)
			}
			return
		}
		a[t] = a[t-p]
		visit(t+1, p)
		for j := a[t-p] + 1; j < 2; j++ {
			a[t] = j
			visit(t+1, t)
		}
	}
	visit(1, 1)
	return seq, nil
}

// CheckHeapBudget rejects a De Bruijn generation request the caller's
// last-sampled free heap can't cover, plus a fixed safety margin
// (spec.md §4.8: "heap budget must be checked before generation").
// The radio worker supplies freeHeapBytes from its periodic gopsutil
// sample; this package has no memory-introspection capability of its
// own, by design — it only judges the number it's handed.
func CheckHeapBudget(n int, freeHeapBytes uint32) error {
	const margin = 4096
	need := uint32(1) << uint(n)
	if need+margin > freeHeapBytes {
		return fmt.Errorf("bruteforce: de Bruijn order %d needs ~%d bytes, only %d free", n, need, freeHeapBytes)
	}
	return nil
}
