// Package workspace owns the per-run working directory: the layout of every
// stage artifact, precondition checks for skipped stages, and the final copy
// of the deliverables to the caller's output directory. The directory is
// never deleted automatically, so partial runs can be resumed cheaply.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"meditation-video-go/internal/stage"
)

const maxNameLen = 20

var partPattern = regexp.MustCompile(`^meditation_part_(\d+)\.wav$`)

// Layout resolves every artifact path for one run.
type Layout struct {
	Dir  string // working directory, retained after the run
	Name string // topic-based file name stem
}

// NameFor derives the filesystem-safe stem used for the working directory
// and artifact names. Spaces become underscores and overly long topics are
// truncated.
func NameFor(topic string) string {
	name := strings.ReplaceAll(strings.TrimSpace(topic), " ", "_")
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	if name == "" {
		name = "meditation"
	}
	return name
}

// New creates (or reuses) the working directory for the topic under root.
func New(root, topic string) (*Layout, error) {
	name := NameFor(topic)
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}
	return &Layout{Dir: dir, Name: name}, nil
}

func (l *Layout) path(suffix string) string {
	return filepath.Join(l.Dir, l.Name+suffix)
}

// TextJSON is the persisted planner output.
func (l *Layout) TextJSON() string { return l.path("_meditation_text.json") }

// TextDebugDump receives the raw model response when parsing fails.
func (l *Layout) TextDebugDump() string { return l.path("_raw_meditation_text_debug.json") }

// SegmentFile is the synthesized audio for the 1-based part index.
func (l *Layout) SegmentFile(n int) string {
	return filepath.Join(l.Dir, fmt.Sprintf("meditation_part_%d.wav", n))
}

// Merged is the combined voice track.
func (l *Layout) Merged() string { return l.path("_meditation_text_merged.wav") }

// MergedFX is the voice track after audio effects.
func (l *Layout) MergedFX() string { return l.path("_meditation_text_merged_fx.wav") }

// Mixed is the voice track with the background bed mixed in.
func (l *Layout) Mixed() string { return l.path("_meditation_text_merged_fx_mixed.wav") }

// ImageFile is the composed background image.
func (l *Layout) ImageFile() string { return l.path("_meditation_image.jpg") }

// VideoFile is the muxed output video.
func (l *Layout) VideoFile() string { return l.path("_meditation_video.mp4") }

// KeywordsFile holds the generated keyword list.
func (l *Layout) KeywordsFile() string { return l.path("_keywords.txt") }

// KeywordsDebugDump receives the raw keywords response when parsing fails.
func (l *Layout) KeywordsDebugDump() string {
	return filepath.Join(l.Dir, "keywords_raw_response.txt")
}

// SegmentFiles lists the synthesized part files in index order.
func (l *Layout) SegmentFiles() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("read working directory: %w", err)
	}
	type part struct {
		idx  int
		path string
	}
	var parts []part
	for _, e := range entries {
		m := partPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		parts = append(parts, part{idx: idx, path: filepath.Join(l.Dir, e.Name())})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].idx < parts[j].idx })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, p.path)
	}
	return out, nil
}

// Require checks the precondition for a dependent stage: the artifact a
// skipped stage should have left behind must exist.
func Require(path, skippedStage string) error {
	if _, err := os.Stat(path); err != nil {
		return stage.MissingArtifact(skippedStage, path)
	}
	return nil
}

// Export copies the final audio and video next to the caller's chosen output
// directory so the working directory stays self-contained. Missing sources
// are skipped; stages may have been gated off.
func (l *Layout) Export(outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	var copied []string
	for _, src := range []string{l.Mixed(), l.VideoFile()} {
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dst := filepath.Join(outputDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return copied, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

// Delete removes the working directory and everything in it.
func (l *Layout) Delete() error {
	if err := os.RemoveAll(l.Dir); err != nil {
		return fmt.Errorf("delete workspace %s: %w", l.Dir, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return nil
}
