package subfile

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseHeaderAndBody(t *testing.T) {
	src := "Filetype: Flipper SubGhz RAW File\n" +
		"Frequency: 433920000\n" +
		"Preset: FuriHalSubGhzPresetOok650Async\n" +
		"RAW_Data: 400 -400 400 -400 8000 -8000\n"
	var got []int64
	hdr, err := Parse(strings.NewReader(src), func(dur uint32, high bool) error {
		v := int64(dur)
		if !high {
			v = -v
		}
		got = append(got, v)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if hdr.FrequencyHz != 433920000 {
		t.Fatalf("frequency = %d", hdr.FrequencyHz)
	}
	if hdr.Preset != PresetOok650 {
		t.Fatalf("preset = %q", hdr.Preset)
	}
	want := []int64{400, -400, 400, -400, 8000, -8000}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pulse %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestCustomPresetHexPairs(t *testing.T) {
	src := "Frequency: 433920000\n" +
		"Preset: FuriHalSubGhzPresetCustom\n" +
		"Custom_preset_data: 02 0D 03 07\n" +
		"RAW_Data: 100 -100\n"
	hdr, err := Parse(strings.NewReader(src), func(uint32, bool) error { return nil })
	if err != nil {
		t.Fatal(err)
	}
	if len(hdr.CustomPreset) != 4 || hdr.CustomPreset[1] != 0x0D {
		t.Fatalf("custom preset = % x", hdr.CustomPreset)
	}
}

func TestRoundTrip(t *testing.T) {
	durations := []uint32{400, 400, 800, 120, 9000}
	buf := new(bytes.Buffer)
	w, err := NewWriter(buf, 433920000, PresetOok650, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range durations {
		if err := w.WritePulse(d); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	var gotAbs []uint32
	var gotSigns []bool
	expectHigh := true
	_, err = Parse(buf, func(dur uint32, high bool) error {
		gotAbs = append(gotAbs, dur)
		gotSigns = append(gotSigns, high)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(gotAbs) != len(durations) {
		t.Fatalf("got %d pulses, want %d", len(gotAbs), len(durations))
	}
	for i, d := range durations {
		if gotAbs[i] != d {
			t.Fatalf("pulse %d: got %d want %d", i, gotAbs[i], d)
		}
		if gotSigns[i] != expectHigh {
			t.Fatalf("pulse %d: sign alternation broken", i)
		}
		expectHigh = !expectHigh
	}
}
