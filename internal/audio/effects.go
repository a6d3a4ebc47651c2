package audio

import "math"

// biquad is a direct-form-I second order IIR section with independent state
// per channel.
type biquad struct {
	b0, b1, b2, a1, a2 float64
}

// lowShelf builds an RBJ low-shelf section boosting below cutoff by gainDB.
func lowShelf(cutoff, gainDB, q float64, rate int) biquad {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * cutoff / float64(rate)
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	sqA := math.Sqrt(a)

	b0 := a * ((a + 1) - (a-1)*cosW + 2*sqA*alpha)
	b1 := 2 * a * ((a - 1) - (a+1)*cosW)
	b2 := a * ((a + 1) - (a-1)*cosW - 2*sqA*alpha)
	a0 := (a + 1) + (a-1)*cosW + 2*sqA*alpha
	a1 := -2 * ((a - 1) + (a+1)*cosW)
	a2 := (a + 1) + (a-1)*cosW - 2*sqA*alpha
	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

// lowPass builds an RBJ low-pass section at the cutoff frequency.
func lowPass(cutoff, q float64, rate int) biquad {
	w0 := 2 * math.Pi * cutoff / float64(rate)
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)

	b0 := (1 - cosW) / 2
	b1 := 1 - cosW
	b2 := (1 - cosW) / 2
	a0 := 1 + alpha
	a1 := -2 * cosW
	a2 := 1 - alpha
	return biquad{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

func (f biquad) apply(samples []float64) {
	var x1, x2, y1, y2 float64
	for i, x := range samples {
		y := f.b0*x + f.b1*x1 + f.b2*x2 - f.a1*y1 - f.a2*y2
		x2, x1 = x1, x
		y2, y1 = y1, y
		samples[i] = y
	}
}

// FXOptions selects the voice-track post-processing.
type FXOptions struct {
	BassBoost  bool
	BassGainDB float64 // shelf gain when BassBoost is set
	LowPassHz  float64 // always-on gentle top-end rolloff; 0 disables
	ReverbRoom float64 // comb feedback scaling, 0..1
	ReverbWet  float64 // reverb level mixed under the dry signal; 0 disables
}

// DefaultBassGainDB returns the shelf gain used for a voice: the brighter
// female voice gets a softer boost.
func DefaultBassGainDB(voice string) float64 {
	if voice == "shimmer" {
		return 3.0
	}
	return 5.0
}

const (
	bassShelfHz = 150.0
	bassShelfQ  = 1.0
	lowPassQ    = 0.707
)

// ApplyFX runs the voice track through the effect chain in place.
func ApplyFX(c *Clip, opts FXOptions) {
	if opts.BassBoost {
		shelf := lowShelf(bassShelfHz, opts.BassGainDB, bassShelfQ, c.Rate)
		shelf.apply(c.L)
		shelf = lowShelf(bassShelfHz, opts.BassGainDB, bassShelfQ, c.Rate)
		shelf.apply(c.R)
	}
	if opts.LowPassHz > 0 && opts.LowPassHz < float64(c.Rate)/2 {
		lp := lowPass(opts.LowPassHz, lowPassQ, c.Rate)
		lp.apply(c.L)
		lp = lowPass(opts.LowPassHz, lowPassQ, c.Rate)
		lp.apply(c.R)
	}
	if opts.ReverbWet > 0 {
		reverb(c.L, c.Rate, opts.ReverbRoom, opts.ReverbWet)
		reverb(c.R, c.Rate, opts.ReverbRoom, opts.ReverbWet)
	}
}

// Freeverb tunings, in frames at 44.1 kHz; scaled to the clip's rate.
var (
	reverbCombDelays    = []int{1116, 1188, 1277, 1356}
	reverbAllpassDelays = []int{556, 441}
)

const reverbAllpassFeedback = 0.5

// reverb is a small Schroeder section: parallel feedback combs into serial
// allpass diffusers, with the tail mixed under the dry signal at the wet
// level. The first sample always passes through untouched.
func reverb(samples []float64, rate int, room, wet float64) {
	scale := float64(rate) / 44100
	feedback := 0.7 + 0.28*room // freeverb's room-size mapping
	tail := make([]float64, len(samples))
	for _, d := range reverbCombDelays {
		n := int(float64(d) * scale)
		if n < 1 {
			n = 1
		}
		buf := make([]float64, n)
		pos := 0
		for i, x := range samples {
			y := buf[pos]
			buf[pos] = x + y*feedback
			tail[i] += y
			pos++
			if pos == n {
				pos = 0
			}
		}
	}
	for _, d := range reverbAllpassDelays {
		n := int(float64(d) * scale)
		if n < 1 {
			n = 1
		}
		buf := make([]float64, n)
		pos := 0
		for i, x := range tail {
			y := buf[pos] - reverbAllpassFeedback*x
			buf[pos] = x + reverbAllpassFeedback*y
			tail[i] = y
			pos++
			if pos == n {
				pos = 0
			}
		}
	}
	gain := wet / float64(len(reverbCombDelays))
	for i := range samples {
		samples[i] += gain * tail[i]
	}
}
