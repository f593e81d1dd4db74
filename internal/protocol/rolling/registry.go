package rolling

import (
	"github.com/evilcrow/subghz-gadget/internal/cipher"
	"github.com/evilcrow/subghz-gadget/internal/protocol"
)

// Keystore carries every piece of vendor key material the rolling
// decoders need. A zero-value Keystore still constructs every
// decoder; ciphered decoders simply won't validate against any real
// device until their key fields are populated (e.g. from a loaded
// keystore file or a prior capture's learned key).
type Keystore struct {
	KiaV3V4MfKey uint64
	KiaV5Key     uint64
	KiaV6KeyA    uint64
	KiaV6KeyB    uint64
	StarLineKeys []ManufacturerKey
	VAGAut64Keys [3]cipher.AUT64Key
	VAGXTEAKey   [4]uint32
}

// All returns one fresh Decoder per registered rolling-code vendor,
// keyed from ks (spec.md §4.7).
func All(ks Keystore) []protocol.Decoder {
	return []protocol.Decoder{
		NewSuzuki(),
		NewSubaru(),
		NewFiatV0(),
		NewFordV0(),
		NewKiaV0(),
		NewKiaV1(),
		NewKiaV2(),
		NewKiaV3V4(ks.KiaV3V4MfKey),
		NewKiaV5(ks.KiaV5Key),
		NewKiaV6(ks.KiaV6KeyA, ks.KiaV6KeyB),
		NewStarLine(ks.StarLineKeys),
		NewScherKhan(),
		NewVAG(ks.VAGAut64Keys, ks.VAGXTEAKey),
		NewPSA(),
	}
}
