package keywords_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meditation-video-go/internal/keywords"
	"meditation-video-go/internal/stage"
	"meditation-video-go/internal/workspace"
)

type chatStub struct {
	responses []string
	calls     int
}

func (s *chatStub) Chat(context.Context, string) (string, error) {
	if s.calls >= len(s.responses) {
		return "", errors.New("unexpected chat call")
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

func (s *chatStub) Speech(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *chatStub) Image(context.Context, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func TestParse(t *testing.T) {
	t.Parallel()

	got := keywords.Parse("Calm, SLEEP , focus,, breath ", 0)
	assert.Equal(t, []string{"calm", "sleep", "focus", "breath"}, got)
}

func TestParseCapsAtN(t *testing.T) {
	t.Parallel()

	got := keywords.Parse("a, b, c, d, e", 3)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestGeneratePersistsKeywords(t *testing.T) {
	t.Parallel()

	layout, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)
	stub := &chatStub{responses: []string{"calm, sleep, peace"}}
	e := keywords.New(stub, layout)

	got, err := e.Generate(context.Background(), "Calm", keywords.DefaultCount)
	require.NoError(t, err)
	assert.Equal(t, []string{"calm", "sleep", "peace"}, got)

	data, err := os.ReadFile(layout.KeywordsFile())
	require.NoError(t, err)
	assert.Equal(t, "calm, sleep, peace\n", string(data))
}

func TestGenerateEmptyResponseIsMalformed(t *testing.T) {
	t.Parallel()

	layout, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)
	stub := &chatStub{responses: []string{"  , , "}}
	e := keywords.New(stub, layout)

	_, err = e.Generate(context.Background(), "Calm", 10)
	var se *stage.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stage.MalformedGeneration, se.Kind)
	assert.FileExists(t, layout.KeywordsDebugDump())
}

func TestTranslateAllRewritesKeywordFile(t *testing.T) {
	t.Parallel()

	layout, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)
	stub := &chatStub{responses: []string{"calma, paz"}}
	e := keywords.New(stub, layout)

	got, err := e.TranslateAll(context.Background(), []string{"calm", "peace"}, "Spanish")
	require.NoError(t, err)
	assert.Equal(t, []string{"calma", "paz"}, got)

	data, err := os.ReadFile(layout.KeywordsFile())
	require.NoError(t, err)
	assert.Equal(t, "calma, paz\n", string(data))
}

func TestTranslateRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	layout, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)
	e := keywords.New(&chatStub{}, layout)

	_, err = e.Translate(context.Background(), "", "Spanish")
	assert.Error(t, err)
	_, err = e.Translate(context.Background(), "hello", " ")
	assert.Error(t, err)
}

func TestGenerateTrimsWhitespaceResponses(t *testing.T) {
	t.Parallel()

	layout, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)
	stub := &chatStub{responses: []string{strings.Join([]string{" one", "two ", " three "}, ",")}}
	e := keywords.New(stub, layout)

	got, err := e.Generate(context.Background(), "Calm", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)
}
