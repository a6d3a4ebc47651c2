// Package stage defines the pipeline stage names and the tagged error
// taxonomy every stage reports through. The orchestrator decides whether to
// halt based on the tag rather than on exception-style control flow.
package stage

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Stage names, in pipeline order. These are also the keys accepted by the
// CLI stage-override flags.
const (
	Texts           = "texts"
	AudioFiles      = "audio_files"
	CombineAudio    = "combine_audio_files"
	AudioFX         = "audio_fx"
	BackgroundAudio = "background_audio"
	Image           = "image"
	Video           = "video"
	Keywords        = "keywords"
)

// Order is the fixed execution order of the pipeline.
var Order = []string{
	Texts, AudioFiles, CombineAudio, AudioFX, BackgroundAudio, Image, Video, Keywords,
}

// Kind classifies how a stage ended.
type Kind int

const (
	// OK means the stage completed.
	OK Kind = iota
	// MalformedGeneration means structured output from the text service
	// failed to parse. Terminal, no retry.
	MalformedGeneration
	// ContentPolicy means the generation service refused the prompt.
	// Terminal; the user should adjust the topic or resume later stages.
	ContentPolicy
	// RateLimited means the upstream quota was exhausted mid-batch.
	// Terminal for this run.
	RateLimited
	// Precondition means a stage was marked complete but its expected
	// artifact is missing from the working directory.
	Precondition
	// Failed covers everything else: transport errors, filesystem errors,
	// tool errors.
	Failed
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case MalformedGeneration:
		return "malformed_generation"
	case ContentPolicy:
		return "content_policy_rejected"
	case RateLimited:
		return "rate_limited"
	case Precondition:
		return "precondition_failed"
	default:
		return "failed"
	}
}

// ErrMissingArtifact reports a skipped stage whose output file is absent.
var ErrMissingArtifact = errors.New("expected artifact missing from working directory")

// Error is the tagged result a failing stage returns to the orchestrator.
type Error struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fail wraps err for the named stage, classifying API errors into the
// taxonomy above.
func Fail(stageName string, err error) *Error {
	return &Error{Stage: stageName, Kind: Classify(err), Err: err}
}

// MissingArtifact builds the fatal precondition error for a skipped stage.
func MissingArtifact(stageName, path string) *Error {
	return &Error{
		Stage: stageName,
		Kind:  Precondition,
		Err:   fmt.Errorf("%w: %s (stage %q was marked complete)", ErrMissingArtifact, path, stageName),
	}
}

// Malformed builds the terminal parse-failure error, pointing at the raw
// response dump left in the working directory.
func Malformed(stageName, dumpPath string, err error) *Error {
	return &Error{
		Stage: stageName,
		Kind:  MalformedGeneration,
		Err:   fmt.Errorf("could not parse API response (raw response saved to %s): %w", dumpPath, err),
	}
}

// Classify maps an error to a Kind. OpenAI API errors are inspected for
// rate-limit status and content-policy refusals; anything unrecognized is
// Failed.
func Classify(err error) Kind {
	if err == nil {
		return OK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, ErrMissingArtifact) {
		return Precondition
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return RateLimited
		}
		if code, ok := apiErr.Code.(string); ok && strings.Contains(code, "content_policy") {
			return ContentPolicy
		}
		if strings.Contains(apiErr.Type, "content_policy") ||
			strings.Contains(strings.ToLower(apiErr.Message), "safety system") {
			return ContentPolicy
		}
	}
	return Failed
}

// IsTerminal reports whether the run must stop on this kind. Every non-OK
// kind is terminal for a single invocation; resumption is manual via the
// stage gate map on a later run.
func (k Kind) IsTerminal() bool { return k != OK }
