package audio

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

var (
	ErrBadBeatParams = errors.New("binaural parameters must be greater than zero")
	ErrEmptyAmbient  = errors.New("ambient source is empty after trimming")
)

// BinauralOptions parameterizes the beat synthesis.
type BinauralOptions struct {
	StartBeatFreq float64 // beat frequency at t=0, Hz
	EndBeatFreq   float64 // beat frequency at the end of the track, Hz
	BaseFreq      float64 // carrier frequency of the left ear, Hz
	FadeOut       float64 // seconds of linear fade at the tail
	SampleRate    int
}

// BinauralBeats synthesizes a stereo beat bed of the given duration. The
// left ear carries a pure base tone; the right ear's instantaneous frequency
// is base plus a beat offset swept linearly from StartBeatFreq to
// EndBeatFreq. The right channel is generated by integrating its
// instantaneous frequency, which keeps the perceived beat monotone across
// the whole sweep.
func BinauralBeats(d time.Duration, opts BinauralOptions) (*Clip, error) {
	if d <= 0 {
		return nil, fmt.Errorf("binaural duration must be greater than zero, got %v", d)
	}
	if opts.StartBeatFreq <= 0 || opts.EndBeatFreq <= 0 || opts.BaseFreq <= 0 {
		return nil, ErrBadBeatParams
	}
	n := int(math.Round(d.Seconds() * float64(opts.SampleRate)))
	c := &Clip{L: make([]float64, n), R: make([]float64, n), Rate: opts.SampleRate}

	dt := 1.0 / float64(opts.SampleRate)
	var phaseR float64
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		c.L[i] = math.Sin(2 * math.Pi * opts.BaseFreq * t)
		c.R[i] = math.Sin(phaseR)
		beat := BeatFreqAt(i, n, opts.StartBeatFreq, opts.EndBeatFreq)
		phaseR += 2 * math.Pi * (opts.BaseFreq + beat) * dt
	}
	if opts.FadeOut > 0 {
		c.FadeOut(opts.FadeOut)
	}
	return c, nil
}

// BeatFreqAt returns the instantaneous beat frequency for frame i of n,
// swept linearly between the endpoints.
func BeatFreqAt(i, n int, start, end float64) float64 {
	if n <= 1 {
		return start
	}
	return start + (end-start)*float64(i)/float64(n-1)
}

// AmbientOptions parameterizes the ambient bed preparation.
type AmbientOptions struct {
	ChopFrames int     // leading frames dropped to skip clicks/intros
	FadeIn     float64 // seconds
	FadeOut    float64 // seconds
	SampleRate int
}

// AmbientBed cuts a background bed of exactly targetFrames frames out of the
// ambient source. The source is trimmed, resampled, looped when shorter than
// the target, and a random window is chosen when longer, then faded at both
// ends.
func AmbientBed(src *Clip, targetFrames int, opts AmbientOptions, rng *rand.Rand) (*Clip, error) {
	bed := src.Resample(opts.SampleRate)
	bed.Chop(opts.ChopFrames)
	if bed.Len() == 0 {
		return nil, ErrEmptyAmbient
	}
	if bed.Len() < targetFrames {
		bed = bed.Tile(targetFrames)
	} else if bed.Len() > targetFrames {
		start := rng.Intn(bed.Len() - targetFrames + 1)
		bed = bed.Window(start, targetFrames)
	}
	if opts.FadeIn > 0 {
		bed.FadeIn(opts.FadeIn)
	}
	if opts.FadeOut > 0 {
		bed.FadeOut(opts.FadeOut)
	}
	return bed, nil
}

// Mode defaults for the power ratio when the user leaves it unset. Larger
// values make the voice louder relative to the background.
const (
	DefaultAmbientPowerRatio  = 7500.0
	DefaultBinauralPowerRatio = 450000.0
)

// MixPowerRatio overlays the background bed under the voice track at the
// given power ratio and peak-normalizes the result. The bed gain is chosen
// so voicePower ≈ ratio × bedPower after scaling: the amplitude scale is
// sqrt(bedPower·ratio/voicePower) applied as a −10·log10(scale) dB cut. The
// output has exactly the voice track's length.
func MixPowerRatio(voice, bed *Clip, ratio float64) (*Clip, error) {
	if ratio <= 0 {
		return nil, fmt.Errorf("power ratio must be greater than zero, got %v", ratio)
	}
	if bed.Len() != voice.Len() {
		return nil, fmt.Errorf("bed length %d does not match voice length %d", bed.Len(), voice.Len())
	}
	voicePower := voice.Power()
	bedPower := bed.Power()
	if voicePower == 0 || bedPower == 0 {
		return nil, ErrEmptyClip
	}
	scale := math.Sqrt(bedPower * ratio / voicePower)
	adjusted := bed.Clone()
	adjusted.GainDB(-10 * math.Log10(scale))

	out := voice.Clone()
	if err := out.Overlay(adjusted); err != nil {
		return nil, err
	}
	out.Normalize(normalizeHeadroomDB)
	return out, nil
}

// Matches the 0.1 dB headroom the rest of the chain assumes.
const normalizeHeadroomDB = 0.1
