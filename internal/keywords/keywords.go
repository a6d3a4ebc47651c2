// Package keywords derives social-media keywords for the finished video and
// handles the translation helper used for bilingual runs.
package keywords

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"meditation-video-go/internal/oai"
	"meditation-video-go/internal/stage"
	"meditation-video-go/internal/workspace"
)

// DefaultCount caps the suggested keyword list.
const DefaultCount = 30

var ErrNoKeywords = errors.New("no keywords in response")

type Extractor struct {
	backend oai.Backend
	layout  *workspace.Layout
}

func New(backend oai.Backend, layout *workspace.Layout) *Extractor {
	return &Extractor{backend: backend, layout: layout}
}

func prompt(topic string, n int) string {
	return fmt.Sprintf(`Act as a social media manager who is an expert in Youtube.
You are tasked with generating keywords for a guided meditation and affirmation video.
Generate at least %d keywords of one word each for such a video with the topic '%s'.
In addition generate 10 single word keywords about mindfulness, meditation, and relaxation.
Only respond with the keywords and give NO prefix or suffix to your response.
Return them as a comma-separated list as follows:
keyword1, keyword2, keyword3, ...
`, n, topic)
}

// Generate asks for up to n keywords for the topic, persists them to the
// working directory, and returns them trimmed and lowercased in response
// order. An unusable response is dumped for inspection.
func (e *Extractor) Generate(ctx context.Context, topic string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultCount
	}
	raw, err := e.backend.Chat(ctx, prompt(topic, n))
	if err != nil {
		return nil, stage.Fail(stage.Keywords, err)
	}
	list := Parse(raw, n)
	if len(list) == 0 {
		dump := e.layout.KeywordsDebugDump()
		_ = os.WriteFile(dump, []byte(raw), 0o644)
		return nil, stage.Malformed(stage.Keywords, dump, ErrNoKeywords)
	}
	if err := os.WriteFile(e.layout.KeywordsFile(), []byte(strings.Join(list, ", ")+"\n"), 0o644); err != nil {
		return nil, stage.Fail(stage.Keywords, fmt.Errorf("write keywords: %w", err))
	}
	return list, nil
}

// Parse splits a comma-separated keyword response, lowercasing and trimming
// each entry and capping the list at n.
func Parse(raw string, n int) []string {
	var out []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		out = append(out, k)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out
}

// TranslateAll translates the keyword list in one call and rewrites the
// persisted keyword file with the result.
func (e *Extractor) TranslateAll(ctx context.Context, list []string, targetLanguage string) ([]string, error) {
	if len(list) == 0 {
		return nil, ErrNoKeywords
	}
	raw, err := e.Translate(ctx, strings.Join(list, ", "), targetLanguage)
	if err != nil {
		return nil, err
	}
	out := Parse(raw, 0)
	if len(out) == 0 {
		return nil, fmt.Errorf("translate keywords: %w", ErrNoKeywords)
	}
	if err := os.WriteFile(e.layout.KeywordsFile(), []byte(strings.Join(out, ", ")+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("write translated keywords: %w", err)
	}
	return out, nil
}

// Translate renders text in the target language via the chat model.
func (e *Extractor) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("translate: empty text")
	}
	if strings.TrimSpace(targetLanguage) == "" {
		return "", errors.New("translate: empty target language")
	}
	p := fmt.Sprintf(`Act as a professional translator who is an expert in translating text to different languages.
You are tasked with translating the below TEXT to %s:
<TEXT>'%s'</TEXT>
Respond only with the translated text, with no prefix or suffix to your response.
`, targetLanguage, text)
	out, err := e.backend.Chat(ctx, p)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return strings.TrimSpace(out), nil
}
