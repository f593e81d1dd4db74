package fixedcode

import "github.com/evilcrow/subghz-gadget/internal/protocol"

func sym(high, low uint32) Symbol { return Symbol{High: high, Low: low} }

var templates = []Template{
	{
		Name:   "CAME 12bit",
		FreqHz: 433920000,
		Bits:   12,
		Kind:   Binary,
		Timing: protocol.Timing{TEShort: 320, TELong: 640, TEDelta: 150, MinCountBit: 12},
		Pilot:  []Symbol{sym(320, 9536)},
		Stop:   sym(320, 9536),
		Symbols: map[byte]Symbol{
			'0': sym(320, 640),
			'1': sym(640, 320),
		},
	},
	{
		Name:   "Princeton",
		FreqHz: 433920000,
		Bits:   12,
		Kind:   Tristate,
		Timing: protocol.Timing{TEShort: 350, TELong: 1050, TEDelta: 150, MinCountBit: 12},
		Pilot:  []Symbol{sym(350, 10850)},
		Stop:   sym(350, 10850),
		Order:  []byte{'0', 'F', '1'},
		Symbols: map[byte]Symbol{
			'0': sym(350, 1050),
			'1': sym(1050, 350),
			'F': sym(350, 350),
		},
	},
	{
		Name:   "Linear",
		FreqHz: 300000000,
		Bits:   10,
		Kind:   Binary,
		Timing: protocol.Timing{TEShort: 400, TELong: 800, TEDelta: 150, MinCountBit: 10},
		Pilot:  []Symbol{sym(400, 20600)},
		Stop:   sym(400, 20600),
		Symbols: map[byte]Symbol{
			'0': sym(400, 800),
			'1': sym(800, 400),
		},
	},
	{
		Name:   "Hormann",
		FreqHz: 868350000,
		Bits:   38,
		Kind:   Binary,
		Timing: protocol.Timing{TEShort: 365, TELong: 730, TEDelta: 150, MinCountBit: 38},
		Pilot:  []Symbol{sym(365, 9855)},
		Stop:   sym(365, 9855),
		Symbols: map[byte]Symbol{
			'0': sym(365, 730),
			'1': sym(730, 365),
		},
	},
	{
		Name:   "Marantec",
		FreqHz: 868350000,
		Bits:   40,
		Kind:   Binary,
		Timing: protocol.Timing{TEShort: 300, TELong: 600, TEDelta: 150, MinCountBit: 40},
		Pilot:  []Symbol{sym(300, 8100)},
		Stop:   sym(300, 8100),
		Symbols: map[byte]Symbol{
			'0': sym(300, 600),
			'1': sym(600, 300),
		},
	},
	{
		Name:   "Berner",
		FreqHz: 868350000,
		Bits:   25,
		Kind:   Binary,
		Timing: protocol.Timing{TEShort: 370, TELong: 740, TEDelta: 150, MinCountBit: 25},
		Pilot:  []Symbol{sym(370, 10360)},
		Stop:   sym(370, 10360),
		Symbols: map[byte]Symbol{
			'0': sym(370, 740),
			'1': sym(740, 370),
		},
	},
	{
		Name:   "Nice Flo",
		FreqHz: 433920000,
		Bits:   12,
		Kind:   Tristate,
		Timing: protocol.Timing{TEShort: 700, TELong: 1400, TEDelta: 200, MinCountBit: 12},
		Pilot:  []Symbol{sym(700, 10850)},
		Stop:   sym(700, 10850),
		Order:  []byte{'0', 'F', '1'},
		Symbols: map[byte]Symbol{
			'0': sym(700, 1400),
			'1': sym(1400, 700),
			'F': sym(700, 700),
		},
	},
	{
		Name:   "Chamberlain",
		FreqHz: 300000000,
		Bits:   9,
		Kind:   Tristate,
		Timing: protocol.Timing{TEShort: 500, TELong: 1000, TEDelta: 150, MinCountBit: 9},
		Pilot:  []Symbol{sym(500, 20500)},
		Stop:   sym(500, 20500),
		Order:  []byte{'0', 'F', '1'},
		Symbols: map[byte]Symbol{
			'0': sym(500, 1000),
			'1': sym(1000, 500),
			'F': sym(500, 500),
		},
	},
	{
		Name:   "Doorhan",
		FreqHz: 433920000,
		Bits:   64,
		Kind:   Binary,
		Timing: protocol.Timing{TEShort: 500, TELong: 1000, TEDelta: 150, MinCountBit: 64},
		Pilot:  []Symbol{sym(500, 10000)},
		Stop:   sym(500, 10000),
		Symbols: map[byte]Symbol{
			'0': sym(500, 1000),
			'1': sym(1000, 500),
		},
	},
}

// All returns one fresh Decoder per registered fixed-code template.
func All() []protocol.Decoder {
	out := make([]protocol.Decoder, 0, len(templates))
	for _, t := range templates {
		out = append(out, New(t))
	}
	return out
}

// Templates exposes the raw template table, used directly by the
// brute-force engine's keyspace generator (internal/bruteforce) to
// re-use pilot/symbol timing without round-tripping through the
// Decoder interface.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}
