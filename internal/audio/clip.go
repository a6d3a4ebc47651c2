// Package audio implements the sample-level operations the pipeline needs:
// WAV I/O, panning, concatenation with distributed silence, bass boost,
// binaural beat synthesis, ambient beds, and power-ratio mixing. Everything
// works on stereo float64 PCM in [-1, 1] so results are deterministic and
// directly testable.
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptyClip    = errors.New("clip has no samples")
	ErrRateMismatch = errors.New("sample rates differ")
	ErrBadPan       = errors.New("pan must be between -1.0 and 1.0")
)

// Clip is a stereo PCM buffer. L and R always have equal length.
type Clip struct {
	L, R []float64
	Rate int
}

// Silence returns a clip of the given duration.
func Silence(d time.Duration, rate int) *Clip {
	n := int(math.Round(d.Seconds() * float64(rate)))
	if n < 0 {
		n = 0
	}
	return &Clip{L: make([]float64, n), R: make([]float64, n), Rate: rate}
}

// Len returns the number of frames.
func (c *Clip) Len() int { return len(c.L) }

// Duration returns the clip length as a time.Duration.
func (c *Clip) Duration() time.Duration {
	return time.Duration(float64(c.Len()) / float64(c.Rate) * float64(time.Second))
}

// Seconds returns the clip length in seconds.
func (c *Clip) Seconds() float64 { return float64(c.Len()) / float64(c.Rate) }

// Clone returns a deep copy.
func (c *Clip) Clone() *Clip {
	out := &Clip{L: make([]float64, c.Len()), R: make([]float64, c.Len()), Rate: c.Rate}
	copy(out.L, c.L)
	copy(out.R, c.R)
	return out
}

// Append concatenates other onto c in place.
func (c *Clip) Append(other *Clip) error {
	if other.Rate != c.Rate {
		return fmt.Errorf("%w: %d vs %d", ErrRateMismatch, c.Rate, other.Rate)
	}
	c.L = append(c.L, other.L...)
	c.R = append(c.R, other.R...)
	return nil
}

// Gain scales both channels by a linear factor.
func (c *Clip) Gain(factor float64) {
	for i := range c.L {
		c.L[i] *= factor
		c.R[i] *= factor
	}
}

// GainDB scales both channels by a decibel amount.
func (c *Clip) GainDB(db float64) {
	c.Gain(math.Pow(10, db/20))
}

// Pan shifts the stereo balance. -1.0 is fully left, 0.0 centered, +1.0
// fully right. The favored channel is boosted by up to +3 dB while the far
// channel fades to silence at the extremes, so a hard pan leaves exactly one
// audible channel.
func (c *Clip) Pan(amount float64) error {
	if amount < -1 || amount > 1 {
		return fmt.Errorf("%w: %v", ErrBadPan, amount)
	}
	if amount == 0 {
		return nil
	}
	mag := math.Abs(amount)
	boost := math.Pow(2, mag/2)    // up to +3 dB on the favored side
	reduce := 2 - math.Pow(2, mag) // down to silence on the far side
	if reduce < 0 {
		reduce = 0
	}
	var lGain, rGain float64
	if amount < 0 {
		lGain, rGain = boost, reduce
	} else {
		lGain, rGain = reduce, boost
	}
	for i := range c.L {
		c.L[i] *= lGain
		c.R[i] *= rGain
	}
	return nil
}

// Peak returns the largest absolute sample value across both channels.
func (c *Clip) Peak() float64 {
	peak := 0.0
	for i := range c.L {
		if v := math.Abs(c.L[i]); v > peak {
			peak = v
		}
		if v := math.Abs(c.R[i]); v > peak {
			peak = v
		}
	}
	return peak
}

// Normalize scales the clip so the peak sits headroomDB below full scale.
func (c *Clip) Normalize(headroomDB float64) {
	peak := c.Peak()
	if peak == 0 {
		return
	}
	target := math.Pow(10, -headroomDB/20)
	c.Gain(target / peak)
}

// Power returns the mean squared sample value averaged over both channels.
func (c *Clip) Power() float64 {
	if c.Len() == 0 {
		return 0
	}
	var sum float64
	for i := range c.L {
		sum += c.L[i]*c.L[i] + c.R[i]*c.R[i]
	}
	return sum / float64(2*c.Len())
}

// FadeIn ramps the first d seconds linearly from silence.
func (c *Clip) FadeIn(seconds float64) {
	n := int(seconds * float64(c.Rate))
	if n > c.Len() {
		n = c.Len()
	}
	for i := 0; i < n; i++ {
		g := float64(i) / float64(n)
		c.L[i] *= g
		c.R[i] *= g
	}
}

// FadeOut ramps the last d seconds linearly to silence.
func (c *Clip) FadeOut(seconds float64) {
	n := int(seconds * float64(c.Rate))
	if n > c.Len() {
		n = c.Len()
	}
	start := c.Len() - n
	for i := start; i < c.Len(); i++ {
		g := float64(c.Len()-i) / float64(n)
		c.L[i] *= g
		c.R[i] *= g
	}
}

// Overlay adds other on top of c, sample by sample. Other must not be longer
// than c.
func (c *Clip) Overlay(other *Clip) error {
	if other.Rate != c.Rate {
		return fmt.Errorf("%w: %d vs %d", ErrRateMismatch, c.Rate, other.Rate)
	}
	if other.Len() > c.Len() {
		return fmt.Errorf("overlay longer than base clip: %d > %d frames", other.Len(), c.Len())
	}
	for i := range other.L {
		c.L[i] += other.L[i]
		c.R[i] += other.R[i]
	}
	return nil
}

// Resample converts the clip to the target rate with linear interpolation.
func (c *Clip) Resample(rate int) *Clip {
	if rate == c.Rate || c.Len() == 0 {
		out := c.Clone()
		out.Rate = rate
		return out
	}
	n := int(math.Round(float64(c.Len()) * float64(rate) / float64(c.Rate)))
	out := &Clip{L: make([]float64, n), R: make([]float64, n), Rate: rate}
	step := float64(c.Len()-1) / float64(maxInt(n-1, 1))
	for i := 0; i < n; i++ {
		pos := float64(i) * step
		j := int(pos)
		frac := pos - float64(j)
		k := j + 1
		if k >= c.Len() {
			k = c.Len() - 1
		}
		out.L[i] = c.L[j]*(1-frac) + c.L[k]*frac
		out.R[i] = c.R[j]*(1-frac) + c.R[k]*frac
	}
	return out
}

// Window returns frames [start, start+n) as a copy.
func (c *Clip) Window(start, n int) *Clip {
	if start < 0 {
		start = 0
	}
	end := start + n
	if end > c.Len() {
		end = c.Len()
	}
	out := &Clip{L: make([]float64, end-start), R: make([]float64, end-start), Rate: c.Rate}
	copy(out.L, c.L[start:end])
	copy(out.R, c.R[start:end])
	return out
}

// Chop drops the first n frames in place.
func (c *Clip) Chop(n int) {
	if n >= c.Len() {
		c.L, c.R = nil, nil
		return
	}
	c.L = c.L[n:]
	c.R = c.R[n:]
}

// Tile repeats the clip until it covers at least n frames, then truncates.
func (c *Clip) Tile(n int) *Clip {
	out := &Clip{L: make([]float64, 0, n), R: make([]float64, 0, n), Rate: c.Rate}
	for out.Len() < n {
		out.L = append(out.L, c.L...)
		out.R = append(out.R, c.R...)
	}
	out.L = out.L[:n]
	out.R = out.R[:n]
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
