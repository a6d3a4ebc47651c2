// Package planner turns a topic (or supplied source text) into the ordered
// meditation text segments via the chat model, and persists them so later
// stages and reruns can reload them without another API call.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"meditation-video-go/internal/config"
	"meditation-video-go/internal/oai"
	"meditation-video-go/internal/stage"
	"meditation-video-go/internal/workspace"
)

var (
	ErrNoSubsections = errors.New("model returned no meditation parts")
	ErrEmptyFreeText = errors.New("free text content contained no usable sections")
)

// The meditation techniques one of which anchors every generated meditation.
var techniques = []string{
	"Watching the breath",
	"Body sensation",
	"Watching the thoughts",
	"Listening to sounds (but only mention sounds within the meditation track).",
}

type Planner struct {
	cfg     config.Config
	backend oai.Backend
	layout  *workspace.Layout
	prompt  string
}

// New builds a planner. The prompt is assembled once, up front, so a run's
// configuration and RNG draw fully determine it.
func New(cfg config.Config, backend oai.Backend, layout *workspace.Layout, rng *rand.Rand) *Planner {
	p := &Planner{cfg: cfg, backend: backend, layout: layout}
	p.prompt = buildPrompt(cfg, techniques[rng.Intn(len(techniques))])
	return p
}

// Prompt exposes the assembled prompt, mostly for logging and tests.
func (p *Planner) Prompt() string { return p.prompt }

func buildPrompt(cfg config.Config, technique string) string {
	outputType := "meditation"
	if cfg.AffirmationsOnly {
		outputType = "affirmation"
	}
	var b strings.Builder
	if cfg.BaseOnText {
		fmt.Fprintf(&b, "Generate a %s based on the following text.\n", outputType)
		fmt.Fprintf(&b, "Do not use any contractions at all, for example isn't, there's or we're:\n%s\n", cfg.Text)
	} else {
		fmt.Fprintf(&b, "Generate a %s on the topic '%s'.\n", outputType, cfg.Topic)
		b.WriteString("Do not use any contractions at all, for example isn't, there's or we're.\n")
	}
	fmt.Fprintf(&b, "The %s should be %g minutes long.\n", outputType, cfg.Length)
	fmt.Fprintf(&b, `Start with a welcome message part which has an introduction to the %[1]s.
Finish with a closing message part which has a conclusion to the %[1]s.
Break it down into multiple parts which will be read with pauses between them during %[1]s.
Each part should only contain a single action or thought request by you,
but may contain multiple pieces of background information or motivations as well.
Some may only be reminders to continue the focus on what was instructed a previous part.
`, outputType)
	if cfg.LimitParts > 0 {
		fmt.Fprintf(&b, "The entire JSON %s should contain NO MORE THAN %d meditation_part keys.\n", outputType, cfg.LimitParts)
	}
	if !cfg.ExpandOnSection {
		fmt.Fprintf(&b, "Each meditation_part value should be no more than %d sentences long.\n", cfg.NumSentences)
	} else {
		fmt.Fprintf(&b, `Extend each part's text with a %d sentence details relating to that part.
Insure the details demonstrate your in-depth knowledge of the section (and topic) and help the listener.
Do not ask the listener to take further actions or thoughts in this extension.
`, cfg.ExpansionSize)
	}
	if !cfg.AffirmationsOnly {
		fmt.Fprintf(&b, "Whatever the topic of the meditation, embed it within the following meditation technique:\n%s. Do not talk about 'think about' or 'consider'.\n", technique)
	}
	// repeated for emphasis; the model drifts on these two limits otherwise
	if cfg.LimitParts > 0 {
		fmt.Fprintf(&b, "URGENT: THE ENTIRE JSON %s SHOULD CONTAIN NO MORE THAN %d MEDITATION_PART JSON KEYS.\n", strings.ToUpper(outputType), cfg.LimitParts)
	}
	if !cfg.ExpandOnSection {
		fmt.Fprintf(&b, "URGENT: EACH MEDITATION_PART VALUE SHOULD BE LESS THAN %d SENTENCES LONG.\n", cfg.NumSentences)
	}
	jsonSubprompt := `Return the responses in JSON format like:
[
    {"meditation_part_1": "The first part of the meditation text."},
    {"meditation_part_2": "The second part of the meditation text."},
    {"meditation_part_3": "The third part of the meditation text."}
    etc.
]
Add contextual information for each sentence, such as [careful] or [serious] or [happy] to help humanise the speech.
`
	if cfg.AffirmationsOnly {
		jsonSubprompt = strings.ReplaceAll(jsonSubprompt, "meditation", "affirmation")
	}
	b.WriteString(jsonSubprompt)
	if cfg.InSpanish {
		b.WriteString("\nResponde en espanol.\n")
	}
	return b.String()
}

// Plan asks the model for the meditation parts and persists them. A
// non-parsable response is terminal: the raw text is dumped to the working
// directory and a malformed-generation stage error is returned.
func (p *Planner) Plan(ctx context.Context) ([]string, error) {
	raw, err := p.backend.Chat(ctx, p.prompt)
	if err != nil {
		return nil, stage.Fail(stage.Texts, err)
	}
	cleaned := strings.TrimSpace(stripFences(raw))

	parts, err := parseParts(cleaned)
	if err != nil {
		dump := p.layout.TextDebugDump()
		if writeErr := os.WriteFile(dump, []byte(raw), 0o644); writeErr != nil {
			err = errors.Join(err, writeErr)
		}
		return nil, stage.Malformed(stage.Texts, dump, err)
	}
	if err := p.persist(parts); err != nil {
		return nil, stage.Fail(stage.Texts, err)
	}
	return parts, nil
}

// FreeText splits caller-supplied content into sections on blank lines,
// bypassing the model entirely.
func FreeText(content string) ([]string, error) {
	var parts []string
	for _, chunk := range strings.Split(content, "\n\n") {
		if s := strings.TrimSpace(chunk); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return nil, ErrEmptyFreeText
	}
	return parts, nil
}

// LoadSaved reloads a previous run's persisted parts, for reruns that skip
// the text stage.
func LoadSaved(layout *workspace.Layout) ([]string, error) {
	data, err := os.ReadFile(layout.TextJSON())
	if err != nil {
		return nil, fmt.Errorf("load saved meditation text: %w", err)
	}
	parts, err := parseParts(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse saved meditation text: %w", err)
	}
	return parts, nil
}

func (p *Planner) persist(parts []string) error {
	ordered := make([]map[string]string, 0, len(parts))
	for i, part := range parts {
		ordered = append(ordered, map[string]string{
			fmt.Sprintf("meditation_part_%d", i+1): part,
		})
	}
	data, err := json.MarshalIndent(ordered, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal meditation text: %w", err)
	}
	if err := os.WriteFile(p.layout.TextJSON(), data, 0o644); err != nil {
		return fmt.Errorf("write meditation text: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	return strings.ReplaceAll(s, "```", "")
}

// parseParts decodes the strict response shape: a JSON array of single-key
// objects, in reading order.
func parseParts(s string) ([]string, error) {
	// tolerate prefix/suffix chatter around the array
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON array found in response")
	}
	var rows []map[string]string
	if err := json.Unmarshal([]byte(s[start:end+1]), &rows); err != nil {
		return nil, fmt.Errorf("decode meditation parts: %w", err)
	}
	parts := make([]string, 0, len(rows))
	for _, row := range rows {
		for _, v := range row {
			if v = strings.TrimSpace(v); v != "" {
				parts = append(parts, v)
			}
		}
	}
	if len(parts) == 0 {
		return nil, ErrNoSubsections
	}
	return parts, nil
}
