package protocol

import (
	"time"

	"github.com/evilcrow/subghz-gadget/internal/model"
)

// Router feeds a completed pulse sequence to every registered
// decoder, determining edge polarity from position parity (spec.md
// §4.7): even index = high, odd = low.
type Router struct {
	decoders []Decoder
	history  *History
	onResult func(model.DecodedResult)
}

func NewRouter(decoders []Decoder, history *History, onResult func(model.DecodedResult)) *Router {
	return &Router{decoders: decoders, history: history, onResult: onResult}
}

// Feed routes one completed capture (a sequence of unsigned pulse
// durations, as produced by pulse.Ring.CopyAndClear) through every
// registered decoder at the given session frequency.
func (r *Router) Feed(samples []uint32, freqHz uint32, now time.Time) {
	for _, d := range r.decoders {
		d.Reset()
		for i, dur := range samples {
			high := i%2 == 0
			if d.Feed(high, dur) {
				res := d.Result()
				res.FreqHz = freqHz
				d.Reset()
				if r.history.Add(res, now) && r.onResult != nil {
					r.onResult(res)
				}
			}
		}
	}
}

// Decoders exposes the registered set, e.g. for a live-decode status
// query.
func (r *Router) Decoders() []Decoder { return r.decoders }
