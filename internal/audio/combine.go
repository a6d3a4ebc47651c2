package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNoSegments  = errors.New("no segment files to combine")
	ErrTooLong     = errors.New("segments exceed the target duration")
	ErrBadDuration = errors.New("target duration must be greater than zero")
)

// CombineOptions controls how the per-segment voice files become one track.
type CombineOptions struct {
	TargetDuration time.Duration // spoken content plus distributed silence
	FrontBuffer    time.Duration // extra silence before the first segment
	RearBuffer     time.Duration // extra silence after the last segment
	BalanceEven    float64       // pan for segments 0, 2, 4, ...
	BalanceOdd     float64       // pan for segments 1, 3, 5, ...
	SampleRate     int
	// SegmentsPerLoop resets parity at each loop repetition so every
	// repetition keeps the original parity-balance assignment. 0 means the
	// list is a single pass.
	SegmentsPerLoop int
}

// Combine loads the ordered segment files, pans each by its parity, and
// joins them with equal silence gaps so the spoken content spans the target
// duration. The silence deficit is split into one gap after every segment,
// then the front and rear buffers are added on top, matching the layout
// front + seg1 + gap + seg2 + gap + ... + segN + gap + rear.
func Combine(files []string, opts CombineOptions) (*Clip, error) {
	if len(files) == 0 {
		return nil, ErrNoSegments
	}
	if opts.TargetDuration <= 0 {
		return nil, ErrBadDuration
	}

	segments := make([]*Clip, 0, len(files))
	var total float64
	for i, f := range files {
		seg, err := ReadWAV(f)
		if err != nil {
			return nil, fmt.Errorf("segment %d (%s): %w", i+1, f, err)
		}
		seg = seg.Resample(opts.SampleRate)
		parity := i
		if opts.SegmentsPerLoop > 0 {
			parity = i % opts.SegmentsPerLoop
		}
		pan := opts.BalanceEven
		if parity%2 == 1 {
			pan = opts.BalanceOdd
		}
		if err := seg.Pan(pan); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i+1, err)
		}
		total += seg.Seconds()
		segments = append(segments, seg)
	}

	target := opts.TargetDuration.Seconds()
	if total > target {
		return nil, fmt.Errorf("%w: %.1fs of speech for a %.1fs target", ErrTooLong, total, target)
	}
	gap := (target - total) / float64(len(segments))
	gapFrames := int(math.Round(gap * float64(opts.SampleRate)))

	out := Silence(opts.FrontBuffer, opts.SampleRate)
	for i, seg := range segments {
		if i > 0 {
			_ = out.Append(silenceFrames(gapFrames, opts.SampleRate))
		}
		if err := out.Append(seg); err != nil {
			return nil, err
		}
	}
	_ = out.Append(silenceFrames(gapFrames, opts.SampleRate))
	_ = out.Append(Silence(opts.RearBuffer, opts.SampleRate))
	return out, nil
}

func silenceFrames(n, rate int) *Clip {
	if n < 0 {
		n = 0
	}
	return &Clip{L: make([]float64, n), R: make([]float64, n), Rate: rate}
}
