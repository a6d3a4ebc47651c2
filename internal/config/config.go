// Package config holds the full set of user-supplied parameters for one
// meditation run. A Config is assembled once (flags, optional TOML profile,
// defaults), validated, and treated as immutable for the duration of the run.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Banner position values.
const (
	BannerTop    = "top"
	BannerBottom = "bottom"
)

var (
	ErrBadBalance    = errors.New("stereo balance must be between -1.0 and 1.0")
	ErrBadLength     = errors.New("length must be greater than zero minutes")
	ErrBadSampleRate = errors.New("sample rate must be positive")
	ErrBadBeatFreq   = errors.New("beat frequencies must be greater than zero")
	ErrBadBaseFreq   = errors.New("base frequency must be greater than zero")
	ErrBadFade       = errors.New("fade durations must be non-negative")
	ErrBadOpacity    = errors.New("banner opacity must be between 0.0 and 1.0")
	ErrBadHeight     = errors.New("banner height ratio must be between 0.0 and 0.5")
	ErrBadPosition   = errors.New("banner position must be \"top\" or \"bottom\"")
	ErrBadPowerRatio = errors.New("power ratio must be non-negative")
	ErrBadSentences  = errors.New("sentences per part must be positive")
	ErrNoText        = errors.New("base-on-text requires non-empty text")
)

// Config is the immutable per-run configuration.
type Config struct {
	Topic   string  `toml:"topic"`
	Length  float64 `toml:"length_minutes"`
	APIKey  string  `toml:"-"`
	RNGSeed int64   `toml:"rng_seed"` // 0 = time-based

	// Text planning
	BaseOnText       bool   `toml:"base_on_text"`
	Text             string `toml:"text"`
	NumSentences     int    `toml:"num_sentences"`
	ExpandOnSection  bool   `toml:"expand_on_section"`
	ExpansionSize    int    `toml:"expansion_size"`
	LimitParts       int    `toml:"limit_parts"` // 0 = unlimited, otherwise at least 3
	NumLoops         int    `toml:"num_loops"`   // < 1 behaves as 1
	InSpanish        bool   `toml:"in_spanish"`
	AffirmationsOnly bool   `toml:"affirmations_only"`

	// Voices
	TwoVoices   bool   `toml:"two_voices"`
	AllVoices   bool   `toml:"all_voices"`
	ForcedVoice string `toml:"forced_voice"`

	// Voice track
	BassBoost    bool    `toml:"bass_boost"`
	BalanceEven  float64 `toml:"balance_even"`
	BalanceOdd   float64 `toml:"balance_odd"`
	FrontBuffer  float64 `toml:"front_buffer"` // seconds of leading silence
	RearBuffer   float64 `toml:"rear_buffer"`  // seconds of trailing silence
	SampleRate   int     `toml:"sample_rate"`

	// Background
	Binaural         bool    `toml:"binaural"`
	StartBeatFreq    float64 `toml:"start_beat_freq"`
	EndBeatFreq      float64 `toml:"end_beat_freq"`
	BaseFreq         float64 `toml:"base_freq"`
	BinauralFadeOut  float64 `toml:"binaural_fade_out"` // seconds
	SoundsDir        string  `toml:"sounds_dir"`
	NumSamplesToChop int     `toml:"num_samples_to_chop"`
	FadeInTime       float64 `toml:"fade_in_time"`  // seconds
	FadeOutTime      float64 `toml:"fade_out_time"` // seconds
	PowerRatio       float64 `toml:"power_ratio"`   // 0 = mode default

	// Image
	BeautifulLady     bool    `toml:"beautiful_lady"` // fixed lady-meditating prompt instead of the topic scene
	BannerPosition    string  `toml:"banner_position"`
	BannerHeightRatio float64 `toml:"banner_height_ratio"`
	BannerMaxWords    int     `toml:"banner_max_words"`
	BannerOpacity     float64 `toml:"banner_opacity"`

	// Models
	ChatModel    string `toml:"chat_model"`
	TTSModel     string `toml:"tts_model"`
	ImageModel   string `toml:"image_model"`
	ImageQuality string `toml:"image_quality"`
	ImageSize    string `toml:"image_size"`

	// Filesystem
	WorkDirRoot string `toml:"work_dir_root"` // parent of the per-run working directory
	OutputDir   string `toml:"output_dir"`    // final video/audio copies land here
}

// Default returns a Config with the documented defaults. The caller still has
// to set Topic (or BaseOnText+Text) and APIKey.
func Default() Config {
	return Config{
		Topic:             "Mindfulness",
		Length:            10,
		NumSentences:      6,
		ExpansionSize:     4,
		FrontBuffer:       3,
		RearBuffer:        3,
		SampleRate:        44100,
		StartBeatFreq:     5,
		EndBeatFreq:       0.5,
		BaseFreq:          110.0,
		BinauralFadeOut:   4,
		SoundsDir:         "ambient_files",
		NumSamplesToChop:  30000,
		FadeInTime:        4,
		FadeOutTime:       4,
		BannerPosition:    BannerBottom,
		BannerHeightRatio: 0.16,
		BannerMaxWords:    6,
		BannerOpacity:     0.55,
		ChatModel:         "gpt-4o",
		TTSModel:          "tts-1-hd",
		ImageModel:        "dall-e-3",
		ImageQuality:      "standard",
		ImageSize:         "1792x1024",
		WorkDirRoot:       ".",
		OutputDir:         ".",
	}
}

// LoadProfile overlays a TOML profile file onto c. Fields absent from the
// file keep their current values.
func (c *Config) LoadProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse profile %s: %w", path, err)
	}
	return nil
}

// Normalize clamps values the way the pipeline expects them. It returns a
// list of human-readable notes about anything it changed.
func (c *Config) Normalize() []string {
	var notes []string
	if c.LimitParts > 0 && c.LimitParts < 3 {
		c.LimitParts = 3
		notes = append(notes, "limit_parts raised to 3 so the introduction and conclusion parts fit")
	}
	if c.NumLoops < 1 {
		c.NumLoops = 1
	}
	return notes
}

func (c *Config) Validate() error {
	if c.Length <= 0 {
		return ErrBadLength
	}
	if c.NumSentences <= 0 {
		return ErrBadSentences
	}
	if c.BalanceEven < -1 || c.BalanceEven > 1 || c.BalanceOdd < -1 || c.BalanceOdd > 1 {
		return ErrBadBalance
	}
	if c.SampleRate <= 0 {
		return ErrBadSampleRate
	}
	if c.Binaural {
		if c.StartBeatFreq <= 0 || c.EndBeatFreq <= 0 {
			return ErrBadBeatFreq
		}
		if c.BaseFreq <= 0 {
			return ErrBadBaseFreq
		}
	}
	if c.FadeInTime < 0 || c.FadeOutTime < 0 || c.BinauralFadeOut < 0 {
		return ErrBadFade
	}
	if c.PowerRatio < 0 {
		return ErrBadPowerRatio
	}
	if c.BannerOpacity < 0 || c.BannerOpacity > 1 {
		return ErrBadOpacity
	}
	if c.BannerHeightRatio <= 0 || c.BannerHeightRatio > 0.5 {
		return ErrBadHeight
	}
	if c.BannerPosition != BannerTop && c.BannerPosition != BannerBottom {
		return ErrBadPosition
	}
	if c.BaseOnText && c.Text == "" {
		return ErrNoText
	}
	return nil
}
