// Package speech synthesizes one audio file per text segment. The batch
// runs through a small bounded worker pool with per-segment retry, and a
// segment whose output file already exists is skipped, so an aborted batch
// can be resumed instead of restarted.
package speech

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"meditation-video-go/internal/config"
	"meditation-video-go/internal/oai"
	"meditation-video-go/internal/stage"
	"meditation-video-go/internal/workspace"
)

var ErrNoSegments = errors.New("no text segments to synthesize")

// VoiceCatalogue lists the synthesis voices in preference order. The first
// entries are the calm registers suited to meditation; the narrow two-voice
// pool keeps contrast between parities without jarring changes.
var VoiceCatalogue = []string{"onyx", "shimmer", "echo", "alloy", "fable", "nova"}

const (
	twoVoicePoolSize   = 3
	singleVoicePool    = 2
	maxConcurrent      = 3
	perSegmentAttempts = 4
)

// Voices is the resolved voice assignment for a run.
type Voices struct {
	Single string // used when Even/Odd are empty
	Even   string // segments 0, 2, 4, ...
	Odd    string // segments 1, 3, 5, ...
}

// For returns the voice for the 0-based segment index.
func (v Voices) For(i int) string {
	if v.Even == "" {
		return v.Single
	}
	if i%2 == 0 {
		return v.Even
	}
	return v.Odd
}

// Choose draws the run's voices. Two-voice runs take two distinct voices
// from the narrow pool; single-voice runs draw from the first two entries
// unless AllVoices widens the draw, and ForcedVoice overrides the draw
// entirely.
func Choose(cfg config.Config, rng *rand.Rand) Voices {
	var v Voices
	if cfg.TwoVoices {
		pool := append([]string(nil), VoiceCatalogue[:twoVoicePoolSize]...)
		i := rng.Intn(len(pool))
		v.Odd = pool[i]
		pool = append(pool[:i], pool[i+1:]...)
		v.Even = pool[rng.Intn(len(pool))]
		return v
	}
	if cfg.ForcedVoice != "" {
		v.Single = cfg.ForcedVoice
		return v
	}
	poolSize := singleVoicePool
	if cfg.AllVoices {
		poolSize = len(VoiceCatalogue)
	}
	v.Single = VoiceCatalogue[rng.Intn(poolSize)]
	return v
}

type Synthesizer struct {
	backend oai.Backend
	layout  *workspace.Layout
	voices  Voices
}

func New(backend oai.Backend, layout *workspace.Layout, voices Voices) *Synthesizer {
	return &Synthesizer{backend: backend, layout: layout, voices: voices}
}

// Synthesize produces one WAV per segment, in original order, and returns
// the ordered file paths. Segments run concurrently up to a small cap; each
// segment retries transient failures with exponential backoff, while
// content-policy refusals stop retrying immediately. The first failure
// cancels the remaining work but already-written files stay on disk.
func (s *Synthesizer) Synthesize(ctx context.Context, segments []string) ([]string, error) {
	if len(segments) == 0 {
		return nil, stage.Fail(stage.AudioFiles, ErrNoSegments)
	}

	files := make([]string, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, text := range segments {
		i, text := i, text
		files[i] = s.layout.SegmentFile(i + 1)
		g.Go(func() error {
			if _, err := os.Stat(files[i]); err == nil {
				// left over from an aborted batch; reuse it
				return nil
			}
			return s.synthesizeOne(gctx, text, s.voices.For(i), files[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stage.Fail(stage.AudioFiles, err)
	}
	return files, nil
}

func (s *Synthesizer) synthesizeOne(ctx context.Context, text, voice, path string) error {
	operation := func() error {
		data, err := s.backend.Speech(ctx, text, voice)
		if err != nil {
			switch stage.Classify(err) {
			case stage.ContentPolicy:
				return backoff.Permanent(err)
			default:
				return err
			}
		}
		return os.WriteFile(path, data, 0o644)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxElapsedTime = 0 // bounded by attempt count instead
	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(b, perSegmentAttempts-1), ctx))
	if err != nil {
		return fmt.Errorf("synthesize %s: %w", path, err)
	}
	return nil
}

// MaterializeLoops replays the full ordered segment sequence numLoops times
// by copying the files with continuing indices, so the combiner sees one
// flat ordered list and parity assignment carries through every repetition.
func MaterializeLoops(layout *workspace.Layout, files []string, numLoops int) ([]string, error) {
	if numLoops <= 1 {
		return files, nil
	}
	out := append([]string(nil), files...)
	base := len(files)
	for loop := 1; loop < numLoops; loop++ {
		for j, src := range files {
			dst := layout.SegmentFile(base + j + 1)
			data, err := os.ReadFile(src)
			if err != nil {
				return nil, fmt.Errorf("loop segment %s: %w", src, err)
			}
			if err := os.WriteFile(dst, data, 0o644); err != nil {
				return nil, fmt.Errorf("write loop segment %s: %w", dst, err)
			}
			out = append(out, dst)
		}
		base += len(files)
	}
	return out, nil
}
