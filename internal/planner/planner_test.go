package planner_test

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meditation-video-go/internal/config"
	"meditation-video-go/internal/planner"
	"meditation-video-go/internal/stage"
	"meditation-video-go/internal/workspace"
)

// chatStub answers every Chat call with a fixed response.
type chatStub struct {
	response string
	err      error
	prompts  []string
}

func (s *chatStub) Chat(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

func (s *chatStub) Speech(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *chatStub) Image(context.Context, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func newPlanner(t *testing.T, cfg config.Config, stub *chatStub) (*planner.Planner, *workspace.Layout) {
	t.Helper()
	layout, err := workspace.New(t.TempDir(), cfg.Topic)
	require.NoError(t, err)
	return planner.New(cfg, stub, layout, rand.New(rand.NewSource(7))), layout
}

const goodResponse = `[
    {"meditation_part_1": "Welcome to this meditation on restful sleep."},
    {"meditation_part_2": "Take a slow breath in, and let it go."},
    {"meditation_part_3": "Carry this calm with you as you drift off."}
]`

func TestPlanParsesOrderedParts(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Topic = "Restful Sleep"
	stub := &chatStub{response: goodResponse}
	p, layout := newPlanner(t, cfg, stub)

	parts, err := p.Plan(context.Background())
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0], "Welcome")
	assert.Contains(t, parts[2], "drift off")

	// the parts were persisted for gated reruns
	saved, err := planner.LoadSaved(layout)
	require.NoError(t, err)
	assert.Equal(t, parts, saved)
}

func TestPlanToleratesCodeFences(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	stub := &chatStub{response: "```json\n" + goodResponse + "\n```"}
	p, _ := newPlanner(t, cfg, stub)

	parts, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.Len(t, parts, 3)
}

func TestPlanToleratesSurroundingChatter(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	stub := &chatStub{response: "Here is your meditation:\n" + goodResponse + "\nEnjoy!"}
	p, _ := newPlanner(t, cfg, stub)

	parts, err := p.Plan(context.Background())
	require.NoError(t, err)
	assert.Len(t, parts, 3)
}

func TestPlanMalformedResponseIsTerminal(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	stub := &chatStub{response: "I cannot return JSON today, sorry."}
	p, layout := newPlanner(t, cfg, stub)

	_, err := p.Plan(context.Background())
	require.Error(t, err)
	var se *stage.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stage.MalformedGeneration, se.Kind)

	// the raw response was dumped for inspection
	dump, readErr := os.ReadFile(layout.TextDebugDump())
	require.NoError(t, readErr)
	assert.Equal(t, stub.response, string(dump))
}

func TestPlanEmptyPartsAreMalformed(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	stub := &chatStub{response: `[{"meditation_part_1": "   "}]`}
	p, _ := newPlanner(t, cfg, stub)

	_, err := p.Plan(context.Background())
	var se *stage.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stage.MalformedGeneration, se.Kind)
}

func TestPromptReflectsConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Topic = "Gratitude"
	cfg.LimitParts = 5
	cfg.InSpanish = true
	p, _ := newPlanner(t, cfg, &chatStub{})

	prompt := p.Prompt()
	assert.Contains(t, prompt, "'Gratitude'")
	assert.Contains(t, prompt, "NO MORE THAN 5")
	assert.Contains(t, prompt, "Responde en espanol")
	assert.Contains(t, prompt, "meditation_part_1")
	assert.NotContains(t, prompt, "affirmation_part_1")
}

func TestPromptAffirmationsMode(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.AffirmationsOnly = true
	p, _ := newPlanner(t, cfg, &chatStub{})

	prompt := p.Prompt()
	assert.Contains(t, prompt, "affirmation_part_1")
	assert.Contains(t, prompt, "Generate a affirmation")
}

func TestPromptBaseOnText(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.BaseOnText = true
	cfg.Text = "The forest was quiet that morning."
	p, _ := newPlanner(t, cfg, &chatStub{})

	assert.Contains(t, p.Prompt(), cfg.Text)
	assert.Contains(t, p.Prompt(), "based on the following text")
}

func TestFreeText(t *testing.T) {
	t.Parallel()

	parts, err := planner.FreeText("First section.\n\nSecond section.\n\n\n\nThird.")
	require.NoError(t, err)
	assert.Equal(t, []string{"First section.", "Second section.", "Third."}, parts)

	_, err = planner.FreeText("\n\n   \n\n")
	assert.ErrorIs(t, err, planner.ErrEmptyFreeText)
}

func TestLoadSavedMissingFile(t *testing.T) {
	t.Parallel()

	layout, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)
	_, err = planner.LoadSaved(layout)
	assert.Error(t, err)
}
