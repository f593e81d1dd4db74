package settings

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestLoadClampsOutOfRange is table-driven over spec.md §6's clamped
// numeric fields (doismellburning/samoyed's config-table style).
func TestLoadClampsOutOfRange(t *testing.T) {
	cases := []struct {
		name string
		src  string
		get  func(s Settings) int32
		want int32
	}{
		{"scanner_rssi below range", "scanner_rssi=-200\n", func(s Settings) int32 { return s.ScannerRSSI }, -120},
		{"bruter_repeats above range", "bruter_repeats=99\n", func(s Settings) int32 { return s.BruterRepeats }, 10},
		{"nrf_channel above range", "nrf_channel=999\n", func(s Settings) int32 { return s.NrfChannel }, 125},
		{"bruter_power above range", "bruter_power=42\n", func(s Settings) int32 { return s.BruterPower }, 7},
		{"cpu_temp_offset below range", "cpu_temp_offset_decic=-9000\n", func(s Settings) int32 { return s.CPUTempOffsetDeciC }, -500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Load(strings.NewReader(tc.src + "unknown_key=whatever\n"))
			require.NoError(t, err)
			require.Equal(t, tc.want, tc.get(s))
		})
	}
}

func TestUpdateClamps(t *testing.T) {
	s := Default()
	s.Update("nrf_channel", "999")
	require.Equal(t, int32(125), s.NrfChannel)
}

func TestDeviceNameClamped(t *testing.T) {
	s := Default()
	s.Update("device_name", "this-name-is-definitely-too-long-for-the-field")
	require.Len(t, s.DeviceName, 20)
}

func TestSaveLoadIsIdentityUnderClamping(t *testing.T) {
	s := Default()
	s.ScannerRSSI = -50
	s.DeviceName = "my-gadget"
	buf := new(bytes.Buffer)
	require.NoError(t, Save(buf, s))
	got, err := Load(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, s, got, "round-trip mismatch under clamping")
}

func TestUnsetFieldRestoresDefault(t *testing.T) {
	s, err := Load(strings.NewReader("device_name=only-this\n"))
	require.NoError(t, err)
	def := Default()
	require.Equal(t, def.BruterPower, s.BruterPower)
}
