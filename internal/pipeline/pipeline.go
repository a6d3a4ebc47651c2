// Package pipeline orchestrates a full meditation video run: text planning,
// per-part speech synthesis, voice-track assembly and effects, background
// mixing, image composition, video muxing, and keyword generation. Each
// stage can be gated off individually; a skipped stage's artifact must then
// already exist in the working directory or the run fails fast.
package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"meditation-video-go/internal/assets"
	"meditation-video-go/internal/audio"
	"meditation-video-go/internal/config"
	"meditation-video-go/internal/imagegen"
	"meditation-video-go/internal/keywords"
	"meditation-video-go/internal/logger"
	"meditation-video-go/internal/oai"
	"meditation-video-go/internal/planner"
	"meditation-video-go/internal/speech"
	"meditation-video-go/internal/stage"
	"meditation-video-go/internal/video"
	"meditation-video-go/internal/workspace"
)

const (
	voiceLowPassHz = 10000
	reverbRoomSize = 0.04
	reverbWetLevel = 0.04
	muxTimeout     = 10 * time.Minute
)

// Stages gates each pipeline stage. The zero value disables everything; use
// AllStages for a normal run and flip individual fields off to rerun parts
// of a finished working directory.
type Stages struct {
	Texts           bool
	AudioFiles      bool
	CombineAudio    bool
	AudioFX         bool
	BackgroundAudio bool
	Image           bool
	Video           bool
	Keywords        bool
}

// AllStages enables every stage.
func AllStages() Stages {
	return Stages{
		Texts:           true,
		AudioFiles:      true,
		CombineAudio:    true,
		AudioFX:         true,
		BackgroundAudio: true,
		Image:           true,
		Video:           true,
		Keywords:        true,
	}
}

// Result is what a completed (or partially gated) run hands back.
type Result struct {
	Parts     []string // meditation text segments, in reading order
	Keywords  []string
	VideoPath string   // empty when the video stage was gated off
	Exported  []string // copies placed in the output directory
}

// Generator runs the pipeline for one immutable configuration. The RNG,
// voice assignment, and prompts are fixed at construction so a seeded run is
// reproducible end to end.
type Generator struct {
	cfg      config.Config
	stages   Stages
	backend  oai.Backend
	layout   *workspace.Layout
	log      *logrus.Entry
	rng      *rand.Rand
	voices   speech.Voices
	planner  *planner.Planner
	composer *imagegen.Composer
}

// New prepares a generator: working directory, seeded RNG, voice draw, and
// the planning/image prompts.
func New(cfg config.Config, backend oai.Backend, log *logger.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout, err := workspace.New(cfg.WorkDirRoot, cfg.Topic)
	if err != nil {
		return nil, err
	}
	seed := cfg.RNGSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	voices := speech.Choose(cfg, rng)

	g := &Generator{
		cfg:      cfg,
		stages:   AllStages(),
		backend:  backend,
		layout:   layout,
		log:      log.WithRun(uuid.New().String(), cfg.Topic),
		rng:      rng,
		voices:   voices,
		planner:  planner.New(cfg, backend, layout, rng),
		composer: imagegen.New(cfg, backend, layout, rng),
	}
	g.log = g.log.WithField("workdir", layout.Dir)
	return g, nil
}

// SetStages replaces the stage gates for subsequent Run calls.
func (g *Generator) SetStages(s Stages) { g.stages = s }

// Layout exposes the working directory layout.
func (g *Generator) Layout() *workspace.Layout { return g.layout }

// Voices exposes the drawn voice assignment.
func (g *Generator) Voices() speech.Voices { return g.voices }

// Run executes the enabled stages in order. content, when non-empty, is
// split into parts on blank lines instead of asking the model for text, and
// is used even when the text stage is gated off. The first stage failure
// stops the run; artifacts written so far stay on disk so a later invocation
// can resume with earlier stages gated off.
func (g *Generator) Run(ctx context.Context, content string) (*Result, error) {
	res := &Result{}

	parts, err := g.runTexts(ctx, content)
	if err != nil {
		return res, g.halt(err)
	}
	res.Parts = parts

	files, err := g.runAudioFiles(ctx, parts)
	if err != nil {
		return res, g.halt(err)
	}

	if err := g.runCombine(files); err != nil {
		return res, g.halt(err)
	}
	if err := g.runFX(); err != nil {
		return res, g.halt(err)
	}
	if err := g.runBackground(); err != nil {
		return res, g.halt(err)
	}
	if err := g.runImage(ctx); err != nil {
		return res, g.halt(err)
	}
	videoPath, err := g.runVideo(ctx)
	if err != nil {
		return res, g.halt(err)
	}
	res.VideoPath = videoPath

	kw, err := g.runKeywords(ctx)
	if err != nil {
		return res, g.halt(err)
	}
	res.Keywords = kw

	exported, err := g.layout.Export(g.cfg.OutputDir)
	if err != nil {
		return res, err
	}
	res.Exported = exported
	g.log.WithField("exported", exported).Info("run complete")
	return res, nil
}

func (g *Generator) runTexts(ctx context.Context, content string) ([]string, error) {
	if content != "" {
		// supplied text wins over the gate; nothing needs generating
		g.log.Info("splitting supplied content into parts")
		parts, err := planner.FreeText(content)
		if err != nil {
			return nil, stage.Fail(stage.Texts, err)
		}
		return parts, nil
	}
	if !g.stages.Texts {
		g.log.Info("skipping text generation")
		if !g.stages.AudioFiles {
			return nil, nil
		}
		if err := workspace.Require(g.layout.TextJSON(), stage.Texts); err != nil {
			return nil, err
		}
		return planner.LoadSaved(g.layout)
	}
	g.log.Info("generating meditation text")
	parts, err := g.planner.Plan(ctx)
	if err != nil {
		return nil, err
	}
	g.log.WithField("parts", len(parts)).Info("meditation text ready")
	return parts, nil
}

func (g *Generator) runAudioFiles(ctx context.Context, parts []string) ([]string, error) {
	if !g.stages.AudioFiles {
		g.log.Info("skipping speech synthesis")
		if !g.stages.CombineAudio {
			return nil, nil
		}
		if err := workspace.Require(g.layout.SegmentFile(1), stage.AudioFiles); err != nil {
			return nil, err
		}
		return g.layout.SegmentFiles()
	}
	g.log.WithFields(logrus.Fields{
		"parts":  len(parts),
		"voices": g.voices,
	}).Info("synthesizing speech")
	synth := speech.New(g.backend, g.layout, g.voices)
	files, err := synth.Synthesize(ctx, parts)
	if err != nil {
		return nil, err
	}
	files, err = speech.MaterializeLoops(g.layout, files, g.cfg.NumLoops)
	if err != nil {
		return nil, stage.Fail(stage.AudioFiles, err)
	}
	return files, nil
}

func (g *Generator) runCombine(files []string) error {
	if !g.stages.CombineAudio {
		g.log.Info("skipping audio combining")
		if g.stages.AudioFX {
			return workspace.Require(g.layout.Merged(), stage.CombineAudio)
		}
		return nil
	}
	if len(files) == 0 {
		var err error
		files, err = g.layout.SegmentFiles()
		if err != nil {
			return stage.Fail(stage.CombineAudio, err)
		}
	}
	perLoop := 0
	if g.cfg.NumLoops > 1 && len(files)%g.cfg.NumLoops == 0 {
		perLoop = len(files) / g.cfg.NumLoops
	}
	g.log.WithField("segments", len(files)).Info("combining voice track")
	clip, err := audio.Combine(files, audio.CombineOptions{
		TargetDuration:  time.Duration(g.cfg.Length * float64(time.Minute)),
		FrontBuffer:     time.Duration(g.cfg.FrontBuffer * float64(time.Second)),
		RearBuffer:      time.Duration(g.cfg.RearBuffer * float64(time.Second)),
		BalanceEven:     g.cfg.BalanceEven,
		BalanceOdd:      g.cfg.BalanceOdd,
		SampleRate:      g.cfg.SampleRate,
		SegmentsPerLoop: perLoop,
	})
	if err != nil {
		return stage.Fail(stage.CombineAudio, err)
	}
	if err := audio.WriteWAV(g.layout.Merged(), clip); err != nil {
		return stage.Fail(stage.CombineAudio, err)
	}
	return nil
}

func (g *Generator) runFX() error {
	if !g.stages.AudioFX {
		g.log.Info("skipping audio effects")
		if g.stages.BackgroundAudio {
			return workspace.Require(g.layout.MergedFX(), stage.AudioFX)
		}
		return nil
	}
	clip, err := audio.ReadWAV(g.layout.Merged())
	if err != nil {
		return stage.Fail(stage.AudioFX, err)
	}
	fxVoice := g.voices.For(0)
	g.log.WithFields(logrus.Fields{
		"bass_boost": g.cfg.BassBoost,
		"voice":      fxVoice,
	}).Info("applying audio effects")
	audio.ApplyFX(clip, audio.FXOptions{
		BassBoost:  g.cfg.BassBoost,
		BassGainDB: audio.DefaultBassGainDB(fxVoice),
		LowPassHz:  voiceLowPassHz,
		ReverbRoom: reverbRoomSize,
		ReverbWet:  reverbWetLevel,
	})
	if err := audio.WriteWAV(g.layout.MergedFX(), clip); err != nil {
		return stage.Fail(stage.AudioFX, err)
	}
	return nil
}

func (g *Generator) runBackground() error {
	if !g.stages.BackgroundAudio {
		g.log.Info("skipping background audio")
		if g.stages.Video {
			return workspace.Require(g.layout.Mixed(), stage.BackgroundAudio)
		}
		return nil
	}
	voice, err := audio.ReadWAV(g.layout.MergedFX())
	if err != nil {
		return stage.Fail(stage.BackgroundAudio, err)
	}

	var bed *audio.Clip
	ratio := g.cfg.PowerRatio
	if g.cfg.Binaural {
		if ratio == 0 {
			ratio = audio.DefaultBinauralPowerRatio
		}
		g.log.WithFields(logrus.Fields{
			"start_beat_freq": g.cfg.StartBeatFreq,
			"end_beat_freq":   g.cfg.EndBeatFreq,
			"base_freq":       g.cfg.BaseFreq,
		}).Info("synthesizing binaural beats")
		bed, err = audio.BinauralBeats(voice.Duration(), audio.BinauralOptions{
			StartBeatFreq: g.cfg.StartBeatFreq,
			EndBeatFreq:   g.cfg.EndBeatFreq,
			BaseFreq:      g.cfg.BaseFreq,
			FadeOut:       g.cfg.BinauralFadeOut,
			SampleRate:    g.cfg.SampleRate,
		})
		if err != nil {
			return stage.Fail(stage.BackgroundAudio, err)
		}
	} else {
		if ratio == 0 {
			ratio = audio.DefaultAmbientPowerRatio
		}
		lib := assets.NewLibrary(g.cfg.SoundsDir)
		if err := lib.Ensure(); err != nil {
			return stage.Fail(stage.BackgroundAudio, err)
		}
		path, err := lib.Pick(g.rng)
		if err != nil {
			return stage.Fail(stage.BackgroundAudio, err)
		}
		g.log.WithField("ambient_file", path).Info("preparing ambient bed")
		src, err := audio.ReadWAV(path)
		if err != nil {
			return stage.Fail(stage.BackgroundAudio, err)
		}
		bed, err = audio.AmbientBed(src, voice.Len(), audio.AmbientOptions{
			ChopFrames: g.cfg.NumSamplesToChop,
			FadeIn:     g.cfg.FadeInTime,
			FadeOut:    g.cfg.FadeOutTime,
			SampleRate: g.cfg.SampleRate,
		}, g.rng)
		if err != nil {
			return stage.Fail(stage.BackgroundAudio, err)
		}
	}

	bed = fitFrames(bed, voice.Len())
	mixed, err := audio.MixPowerRatio(voice, bed, ratio)
	if err != nil {
		return stage.Fail(stage.BackgroundAudio, err)
	}
	if err := audio.WriteWAV(g.layout.Mixed(), mixed); err != nil {
		return stage.Fail(stage.BackgroundAudio, err)
	}
	return nil
}

func (g *Generator) runImage(ctx context.Context) error {
	if !g.stages.Image {
		g.log.Info("skipping image generation")
		if g.stages.Video {
			return workspace.Require(g.layout.ImageFile(), stage.Image)
		}
		return nil
	}
	g.log.Info("generating meditation image")
	path, err := g.composer.Compose(ctx)
	if err != nil {
		return err
	}
	g.log.WithField("image", path).Info("image composed")
	return nil
}

func (g *Generator) runVideo(ctx context.Context) (string, error) {
	if !g.stages.Video {
		g.log.Info("skipping video generation")
		return "", nil
	}
	if err := video.EnsureTools(); err != nil {
		return "", stage.Fail(stage.Video, err)
	}
	out := g.layout.VideoFile()
	g.log.Info("muxing meditation video")
	if err := video.Mux(ctx, g.layout.ImageFile(), g.layout.Mixed(), out, muxTimeout); err != nil {
		return "", stage.Fail(stage.Video, err)
	}
	if dur, err := video.ProbeDuration(out); err == nil {
		g.log.WithField("duration_sec", dur).Info("video rendered")
	}
	return out, nil
}

func (g *Generator) runKeywords(ctx context.Context) ([]string, error) {
	if !g.stages.Keywords {
		g.log.Info("skipping keyword generation")
		return nil, nil
	}
	g.log.Info("generating keywords")
	ext := keywords.New(g.backend, g.layout)
	kw, err := ext.Generate(ctx, g.cfg.Topic, keywords.DefaultCount)
	if err != nil {
		return nil, err
	}
	if g.cfg.InSpanish {
		kw, err = ext.TranslateAll(ctx, kw, "Spanish")
		if err != nil {
			return nil, stage.Fail(stage.Keywords, err)
		}
		topicEs, err := ext.Translate(ctx, g.cfg.Topic, "Spanish")
		if err != nil {
			return kw, stage.Fail(stage.Keywords, err)
		}
		g.log.WithField("topic_es", topicEs).Info("topic translated")
	}
	return kw, nil
}

// halt logs a failing stage before the run stops. The tag decides: terminal
// kinds end the run and leave the working directory in place for a gated
// rerun.
func (g *Generator) halt(err error) error {
	var serr *stage.Error
	if errors.As(err, &serr) && serr.Kind.IsTerminal() {
		g.log.WithFields(logrus.Fields{
			"stage": serr.Stage,
			"kind":  serr.Kind.String(),
		}).Error("stage failed, halting run")
	}
	return err
}

// fitFrames pads or trims the bed so it lines up sample-exact with the voice
// track. Duration round trips can be off by a frame.
func fitFrames(bed *audio.Clip, n int) *audio.Clip {
	switch {
	case bed.Len() > n:
		return bed.Window(0, n)
	case bed.Len() < n:
		pad := n - bed.Len()
		bed.L = append(bed.L, make([]float64, pad)...)
		bed.R = append(bed.R, make([]float64, pad)...)
	}
	return bed
}
