package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"meditation-video-go/internal/config"
	"meditation-video-go/internal/logger"
	"meditation-video-go/internal/oai"
	"meditation-video-go/internal/pipeline"
	"meditation-video-go/internal/stage"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New()

	cfg := config.Default()
	var (
		profile     string
		contentFile string
		skipStages  string
		onlyStages  string
		keepWorkdir bool
	)
	flag.StringVar(&profile, "profile", "", "TOML profile file overlaying the defaults")
	flag.StringVar(&cfg.Topic, "topic", cfg.Topic, "meditation topic")
	flag.Float64Var(&cfg.Length, "length", cfg.Length, "target length in minutes")
	flag.Int64Var(&cfg.RNGSeed, "seed", cfg.RNGSeed, "RNG seed, 0 for time-based")
	flag.StringVar(&contentFile, "content", "", "file with pre-written meditation text, split on blank lines")
	flag.BoolVar(&cfg.BaseOnText, "base-on-text", cfg.BaseOnText, "generate from -text instead of the topic")
	flag.StringVar(&cfg.Text, "text", cfg.Text, "source text for -base-on-text")
	flag.IntVar(&cfg.NumSentences, "num-sentences", cfg.NumSentences, "max sentences per part")
	flag.BoolVar(&cfg.ExpandOnSection, "expand", cfg.ExpandOnSection, "extend each part with extra detail")
	flag.IntVar(&cfg.ExpansionSize, "expansion-size", cfg.ExpansionSize, "sentences of extra detail per part")
	flag.IntVar(&cfg.LimitParts, "limit-parts", cfg.LimitParts, "max meditation parts, 0 for unlimited")
	flag.IntVar(&cfg.NumLoops, "num-loops", cfg.NumLoops, "times the part sequence repeats")
	flag.BoolVar(&cfg.InSpanish, "spanish", cfg.InSpanish, "generate in Spanish")
	flag.BoolVar(&cfg.AffirmationsOnly, "affirmations", cfg.AffirmationsOnly, "affirmations instead of a meditation")
	flag.BoolVar(&cfg.TwoVoices, "two-voices", cfg.TwoVoices, "alternate two voices by part parity")
	flag.BoolVar(&cfg.AllVoices, "all-voices", cfg.AllVoices, "draw the voice from the full catalogue")
	flag.StringVar(&cfg.ForcedVoice, "voice", cfg.ForcedVoice, "force a specific voice")
	flag.BoolVar(&cfg.BassBoost, "bass-boost", cfg.BassBoost, "boost the voice's low end")
	flag.Float64Var(&cfg.BalanceEven, "balance-even", cfg.BalanceEven, "stereo balance for even parts, -1..1")
	flag.Float64Var(&cfg.BalanceOdd, "balance-odd", cfg.BalanceOdd, "stereo balance for odd parts, -1..1")
	flag.BoolVar(&cfg.Binaural, "binaural", cfg.Binaural, "binaural beats instead of ambient music")
	flag.BoolVar(&cfg.BeautifulLady, "beautiful-lady", cfg.BeautifulLady, "use the fixed lady-meditating image prompt")
	flag.Float64Var(&cfg.PowerRatio, "power-ratio", cfg.PowerRatio, "voice-to-background power ratio, 0 for the mode default")
	flag.StringVar(&cfg.SoundsDir, "sounds-dir", cfg.SoundsDir, "ambient sound library directory")
	flag.StringVar(&cfg.WorkDirRoot, "workdir", cfg.WorkDirRoot, "parent directory for the working directory")
	flag.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "directory receiving the final audio and video")
	flag.StringVar(&skipStages, "skip", "", "comma-separated stages to skip: "+strings.Join(stage.Order, ","))
	flag.StringVar(&onlyStages, "only", "", "comma-separated stages to run exclusively")
	flag.BoolVar(&keepWorkdir, "keep-workdir", true, "keep the working directory after the run")
	flag.Parse()

	if profile != "" {
		if err := cfg.LoadProfile(profile); err != nil {
			log.WithError(err).Fatal("profile load failed")
		}
	}
	cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.APIKey == "" {
		log.Fatal("OPENAI_API_KEY is not set")
	}
	cfg.ChatModel = envOr("CHAT_MODEL", cfg.ChatModel)
	cfg.TTSModel = envOr("TTS_MODEL", cfg.TTSModel)
	cfg.ImageModel = envOr("IMAGE_MODEL", cfg.ImageModel)
	for _, note := range cfg.Normalize() {
		log.Warn(note)
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	stages, err := parseStages(skipStages, onlyStages)
	if err != nil {
		log.WithError(err).Fatal("invalid stage selection")
	}

	var content string
	if contentFile != "" {
		data, err := os.ReadFile(contentFile)
		if err != nil {
			log.WithError(err).Fatal("content file read failed")
		}
		content = string(data)
	}

	backend := oai.NewClient(cfg.APIKey, oai.Options{
		ChatModel:    cfg.ChatModel,
		TTSModel:     cfg.TTSModel,
		ImageModel:   cfg.ImageModel,
		ImageQuality: cfg.ImageQuality,
		ImageSize:    cfg.ImageSize,
	})

	gen, err := pipeline.New(cfg, backend, log)
	if err != nil {
		log.WithError(err).Fatal("pipeline setup failed")
	}
	gen.SetStages(stages)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := gen.Run(ctx, content)
	if err != nil {
		var se *stage.Error
		if errors.As(err, &se) {
			log.WithError(err).WithField("stage", se.Stage).
				WithField("kind", se.Kind.String()).Fatal("run failed")
		}
		log.WithError(err).Fatal("run failed")
	}

	if !keepWorkdir {
		if err := gen.Layout().Delete(); err != nil {
			log.WithError(err).Warn("workspace cleanup failed")
		}
	}

	log.WithField("parts", len(res.Parts)).Info("done")
	if res.VideoPath != "" {
		fmt.Println("video:", res.VideoPath)
	}
	if len(res.Keywords) > 0 {
		fmt.Println("keywords:", strings.Join(res.Keywords, ", "))
	}
}

// parseStages turns the -skip/-only flags into stage gates. -only wins when
// both are given.
func parseStages(skip, only string) (pipeline.Stages, error) {
	gates := map[string]bool{}
	for _, name := range stage.Order {
		gates[name] = true
	}
	apply := func(list string, value bool) error {
		for _, name := range strings.Split(list, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, ok := gates[name]; !ok {
				return fmt.Errorf("unknown stage %q", name)
			}
			gates[name] = value
		}
		return nil
	}
	if only != "" {
		for name := range gates {
			gates[name] = false
		}
		if err := apply(only, true); err != nil {
			return pipeline.Stages{}, err
		}
	} else if err := apply(skip, false); err != nil {
		return pipeline.Stages{}, err
	}
	return pipeline.Stages{
		Texts:           gates[stage.Texts],
		AudioFiles:      gates[stage.AudioFiles],
		CombineAudio:    gates[stage.CombineAudio],
		AudioFX:         gates[stage.AudioFX],
		BackgroundAudio: gates[stage.BackgroundAudio],
		Image:           gates[stage.Image],
		Video:           gates[stage.Video],
		Keywords:        gates[stage.Keywords],
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
