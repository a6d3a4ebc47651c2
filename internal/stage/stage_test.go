package stage_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"meditation-video-go/internal/stage"
)

func TestOrderCoversAllStages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{
		"texts", "audio_files", "combine_audio_files", "audio_fx",
		"background_audio", "image", "video", "keywords",
	}, stage.Order)
}

func TestClassifyRateLimit(t *testing.T) {
	t.Parallel()

	err := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "rate limit"}
	assert.Equal(t, stage.RateLimited, stage.Classify(err))

	wrapped := fmt.Errorf("speech synthesis: %w", err)
	assert.Equal(t, stage.RateLimited, stage.Classify(wrapped))
}

func TestClassifyContentPolicy(t *testing.T) {
	t.Parallel()

	byCode := &openai.APIError{
		HTTPStatusCode: http.StatusBadRequest,
		Code:           "content_policy_violation",
	}
	assert.Equal(t, stage.ContentPolicy, stage.Classify(byCode))

	byMessage := &openai.APIError{
		HTTPStatusCode: http.StatusBadRequest,
		Message:        "Your request was rejected by our safety system.",
	}
	assert.Equal(t, stage.ContentPolicy, stage.Classify(byMessage))
}

func TestClassifyPassthroughAndFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, stage.OK, stage.Classify(nil))
	assert.Equal(t, stage.Failed, stage.Classify(errors.New("disk full")))

	tagged := stage.Malformed(stage.Texts, "/tmp/dump.json", errors.New("no JSON array"))
	assert.Equal(t, stage.MalformedGeneration, stage.Classify(tagged))
	assert.Equal(t, stage.MalformedGeneration, stage.Classify(fmt.Errorf("run: %w", tagged)))
}

func TestMissingArtifact(t *testing.T) {
	t.Parallel()

	err := stage.MissingArtifact(stage.CombineAudio, "/work/merged.wav")
	assert.Equal(t, stage.Precondition, err.Kind)
	assert.ErrorIs(t, err, stage.ErrMissingArtifact)
	assert.Contains(t, err.Error(), "combine_audio_files")
	assert.Contains(t, err.Error(), "/work/merged.wav")
}

func TestKindStringsAndTerminality(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ok", stage.OK.String())
	assert.Equal(t, "malformed_generation", stage.MalformedGeneration.String())
	assert.Equal(t, "content_policy_rejected", stage.ContentPolicy.String())
	assert.Equal(t, "rate_limited", stage.RateLimited.String())
	assert.Equal(t, "precondition_failed", stage.Precondition.String())
	assert.Equal(t, "failed", stage.Failed.String())

	assert.False(t, stage.OK.IsTerminal())
	assert.True(t, stage.RateLimited.IsTerminal())
	assert.True(t, stage.Failed.IsTerminal())
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := stage.Fail(stage.Video, cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, stage.Failed, err.Kind)
}
