package rolling

import (
	"testing"

	"github.com/evilcrow/subghz-gadget/internal/cipher"
	"github.com/evilcrow/subghz-gadget/internal/model"
)

func feedPulses(t *testing.T, name string, pulses []model.Pulse, fresh func() interface {
	Feed(bool, uint32) bool
	Result() model.DecodedResult
	Reset()
}) model.DecodedResult {
	t.Helper()
	d := fresh()
	d.Reset()
	var done bool
	for _, p := range pulses {
		if d.Feed(p.High(), uint32(p.Duration().Microseconds())) {
			done = true
			break
		}
	}
	if !done {
		t.Fatalf("%s: decoder never completed", name)
	}
	return d.Result()
}

func TestSuzukiRoundTrip(t *testing.T) {
	want := model.DecodedResult{Data: 0x0123456789ABCDEF}
	d := NewSuzuki()
	pulses := d.GeneratePulseData(want)
	got := feedPulses(t, "Suzuki", pulses, func() interface {
		Feed(bool, uint32) bool
		Result() model.DecodedResult
		Reset()
	} {
		return NewSuzuki()
	})
	if got.Data != want.Data {
		t.Fatalf("got %#x want %#x", got.Data, want.Data)
	}
}

func TestSubaruRoundTrip(t *testing.T) {
	want := model.DecodedResult{Data: 0xDEADBEEFCAFEBABE}
	d := NewSubaru()
	pulses := d.GeneratePulseData(want)
	got := feedPulses(t, "Subaru", pulses, func() interface {
		Feed(bool, uint32) bool
		Result() model.DecodedResult
		Reset()
	} {
		return NewSubaru()
	})
	if got.Data != want.Data {
		t.Fatalf("got %#x want %#x", got.Data, want.Data)
	}
}

func TestFiatV0RoundTrip(t *testing.T) {
	want := model.DecodedResult{Data: 0x1122334455667788}
	d := NewFiatV0()
	pulses := d.GeneratePulseData(want)
	got := feedPulses(t, "FiatV0", pulses, func() interface {
		Feed(bool, uint32) bool
		Result() model.DecodedResult
		Reset()
	} {
		return NewFiatV0()
	})
	if got.Data != want.Data {
		t.Fatalf("got %#x want %#x", got.Data, want.Data)
	}
}

func TestFordV0RoundTrip(t *testing.T) {
	want := model.DecodedResult{Data: 0x0654321076543210 & ((1 << 63) - 1), Data2: 0x1234}
	d := NewFordV0()
	pulses := d.GeneratePulseData(want)
	got := feedPulses(t, "FordV0", pulses, func() interface {
		Feed(bool, uint32) bool
		Result() model.DecodedResult
		Reset()
	} {
		return NewFordV0()
	})
	if got.Data != want.Data || got.Data2 != want.Data2 {
		t.Fatalf("got key1=%#x key2=%#x want key1=%#x key2=%#x", got.Data, got.Data2, want.Data, want.Data2)
	}
}

func TestKiaV0RoundTrip(t *testing.T) {
	want := model.DecodedResult{Data: 0x1FABCDEF01234 & ((1 << 61) - 1)}
	d := NewKiaV0()
	pulses := d.GeneratePulseData(want)
	got := feedPulses(t, "KiaV0", pulses, func() interface {
		Feed(bool, uint32) bool
		Result() model.DecodedResult
		Reset()
	} {
		return NewKiaV0()
	})
	if got.Data != want.Data {
		t.Fatalf("got %#x want %#x", got.Data, want.Data)
	}
}

func TestKiaV1RoundTrip(t *testing.T) {
	want := model.DecodedResult{Data: 0x1ABCDEF012345 & ((1 << 57) - 1)}
	d := NewKiaV1()
	pulses := d.GeneratePulseData(want)
	got := feedPulses(t, "KiaV1", pulses, func() interface {
		Feed(bool, uint32) bool
		Result() model.DecodedResult
		Reset()
	} {
		return NewKiaV1()
	})
	if got.Data != want.Data {
		t.Fatalf("got %#x want %#x", got.Data, want.Data)
	}
}

func TestKiaV2RoundTrip(t *testing.T) {
	want := model.DecodedResult{Data: 0x1ABCDEF012345 & ((1 << 53) - 1)}
	d := NewKiaV2()
	pulses := d.GeneratePulseData(want)
	got := feedPulses(t, "KiaV2", pulses, func() interface {
		Feed(bool, uint32) bool
		Result() model.DecodedResult
		Reset()
	} {
		return NewKiaV2()
	})
	if got.Data != want.Data {
		t.Fatalf("got %#x want %#x", got.Data, want.Data)
	}
}

func TestKiaV3V4RoundTrip(t *testing.T) {
	const mfKey = 0x0123456789ABCDEF
	const nibble = 0x5
	const serialRaw24 = 0xABCDEF
	const counter16 = 0x1234

	plain := uint32(nibble)<<28 | uint32(counter16)
	encrypted := cipher.KeeloqEncrypt(plain, mfKey)

	b := [8]byte{
		reverseBits8(byte(encrypted)),
		reverseBits8(byte(encrypted >> 8)),
		reverseBits8(byte(encrypted >> 16)),
		reverseBits8(byte(encrypted >> 24)),
		reverseBits8(byte(serialRaw24 & 0xFF)),
		reverseBits8(byte((serialRaw24 >> 8) & 0xFF)),
		reverseBits8(byte(serialRaw24 >> 16)),
		reverseBits8(byte(nibble << 4)),
	}
	var data uint64
	for _, v := range b {
		data = (data << 8) | uint64(v)
	}

	want := model.DecodedResult{Data: data}
	d := NewKiaV3V4(mfKey)
	pulses := d.GeneratePulseData(want)
	got := feedPulses(t, "KiaV3V4", pulses, func() interface {
		Feed(bool, uint32) bool
		Result() model.DecodedResult
		Reset()
	} {
		return NewKiaV3V4(mfKey)
	})
	if !got.CRCValid {
		t.Fatal("CRC did not validate")
	}
	if got.Button != nibble {
		t.Fatalf("button: got %#x want %#x", got.Button, nibble)
	}
	if got.Counter != counter16 {
		t.Fatalf("counter: got %#x want %#x", got.Counter, counter16)
	}
}

func TestStarLineRoundTrip(t *testing.T) {
	const devKey = 0xFEEDFACECAFEBEEF
	const btn = 0x03
	const serial = 0x00ABCDEF
	const endSerial = serial & 0xFF
	const counter = 0x4321

	fix := uint32(btn)<<24 | uint32(serial)
	plain := uint32(btn)<<24 | uint32(endSerial)<<16 | uint32(counter)
	hop := cipher.KeeloqEncrypt(plain, devKey)
	keyWord := uint64(fix)<<32 | uint64(hop)
	code := cipher.ReverseBits64(keyWord)

	keys := []ManufacturerKey{{Name: "Test", Key: devKey, Learning: cipher.LearningSimple}}
	want := model.DecodedResult{Data: code}
	d := NewStarLine(keys)
	pulses := d.GeneratePulseData(want)
	got := feedPulses(t, "StarLine", pulses, func() interface {
		Feed(bool, uint32) bool
		Result() model.DecodedResult
		Reset()
	} {
		return NewStarLine(keys)
	})
	if !got.CRCValid {
		t.Fatal("StarLine: no manufacturer key matched")
	}
	if got.Counter != counter {
		t.Fatalf("counter: got %#x want %#x", got.Counter, counter)
	}
	if got.Serial != uint32(serial) {
		t.Fatalf("serial: got %#x want %#x", got.Serial, serial)
	}
}

func TestScherKhanIsDecodeOnly(t *testing.T) {
	d := NewScherKhan()
	if d.Name() != "Scher-Khan" {
		t.Fatalf("unexpected name %q", d.Name())
	}
	if d.CanEmulate("") {
		t.Fatal("ScherKhan must be decode-only")
	}
	if d.GeneratePulseData(model.DecodedResult{}) != nil {
		t.Fatal("ScherKhan must not emit pulses")
	}
}

func TestDecodeOnlyDecodersRejectEmulation(t *testing.T) {
	decoders := []interface {
		Name() string
		CanEmulate(string) bool
		GeneratePulseData(model.DecodedResult) []model.Pulse
	}{
		NewKiaV5(0),
		NewKiaV6(0, 0),
		NewScherKhan(),
		NewVAG([3]cipher.AUT64Key{}, [4]uint32{}),
		NewPSA(),
	}
	for _, d := range decoders {
		if d.CanEmulate("") {
			t.Fatalf("%s: expected decode-only", d.Name())
		}
		if d.GeneratePulseData(model.DecodedResult{}) != nil {
			t.Fatalf("%s: expected nil pulse output", d.Name())
		}
	}
}

func TestAllRegistersEveryVendor(t *testing.T) {
	decoders := All(Keystore{})
	if len(decoders) != 14 {
		t.Fatalf("got %d decoders want 14", len(decoders))
	}
	seen := map[string]bool{}
	for _, d := range decoders {
		if seen[d.Name()] {
			t.Fatalf("duplicate decoder name %q", d.Name())
		}
		seen[d.Name()] = true
	}
}
