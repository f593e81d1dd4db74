package fixedcode

import "testing"

func TestCAME12RoundTrip(t *testing.T) {
	var tpl Template
	for _, tmpl := range templates {
		if tmpl.Name == "CAME 12bit" {
			tpl = tmpl
		}
	}
	code := uint64(0xABC)
	pulses := tpl.Encode(code)
	d := New(tpl)
	d.Reset()
	var got bool
	for _, p := range pulses {
		if d.Feed(p.High(), uint32(p.Duration().Microseconds())) {
			got = true
		}
	}
	if !got {
		t.Fatal("decoder never completed")
	}
	res := d.Result()
	if res.Data != code {
		t.Fatalf("got %#x want %#x", res.Data, code)
	}
}

func TestPrincetonTristateRoundTrip(t *testing.T) {
	var tpl Template
	for _, tmpl := range templates {
		if tmpl.Name == "Princeton" {
			tpl = tmpl
		}
	}
	digits := []byte{2, 0, 1, 2, 0, 1, 2, 0, 1, 2, 0, 1}
	code := PackTristate(digits)
	pulses := tpl.Encode(code)
	d := New(tpl)
	d.Reset()
	var got bool
	for _, p := range pulses {
		if d.Feed(p.High(), uint32(p.Duration().Microseconds())) {
			got = true
		}
	}
	if !got {
		t.Fatal("decoder never completed")
	}
	res := d.Result()
	if res.Data != code {
		t.Fatalf("got %d want %d", res.Data, code)
	}
}

func TestAllRegistersEveryTemplate(t *testing.T) {
	if len(All()) != len(templates) {
		t.Fatalf("got %d decoders want %d", len(All()), len(templates))
	}
}
