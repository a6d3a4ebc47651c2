package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meditation-video-go/internal/stage"
	"meditation-video-go/internal/workspace"
)

func TestNameFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Deep_Sleep", workspace.NameFor("Deep Sleep"))
	assert.Equal(t, "Letting_Go_of_Anxiou", workspace.NameFor("Letting Go of Anxious Thoughts Tonight"))
	assert.Equal(t, "meditation", workspace.NameFor("   "))
}

func TestLayoutPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l, err := workspace.New(root, "Inner Calm")
	require.NoError(t, err)

	assert.DirExists(t, l.Dir)
	assert.Equal(t, filepath.Join(root, "Inner_Calm"), l.Dir)
	assert.Equal(t, filepath.Join(l.Dir, "Inner_Calm_meditation_text.json"), l.TextJSON())
	assert.Equal(t, filepath.Join(l.Dir, "meditation_part_3.wav"), l.SegmentFile(3))
	assert.Equal(t, filepath.Join(l.Dir, "Inner_Calm_meditation_text_merged.wav"), l.Merged())
	assert.Equal(t, filepath.Join(l.Dir, "Inner_Calm_meditation_text_merged_fx.wav"), l.MergedFX())
	assert.Equal(t, filepath.Join(l.Dir, "Inner_Calm_meditation_text_merged_fx_mixed.wav"), l.Mixed())
	assert.Equal(t, filepath.Join(l.Dir, "Inner_Calm_meditation_image.jpg"), l.ImageFile())
	assert.Equal(t, filepath.Join(l.Dir, "Inner_Calm_meditation_video.mp4"), l.VideoFile())
	assert.Equal(t, filepath.Join(l.Dir, "Inner_Calm_keywords.txt"), l.KeywordsFile())
}

func TestNewIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	first, err := workspace.New(root, "Calm")
	require.NoError(t, err)
	second, err := workspace.New(root, "Calm")
	require.NoError(t, err)
	assert.Equal(t, first.Dir, second.Dir)
}

func TestSegmentFilesSortsNumerically(t *testing.T) {
	t.Parallel()

	l, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)

	// written out of order, including a double-digit index that would sort
	// wrong lexically
	for _, n := range []int{10, 2, 1} {
		require.NoError(t, os.WriteFile(l.SegmentFile(n), []byte("x"), 0o644))
	}
	// noise that must not match
	require.NoError(t, os.WriteFile(filepath.Join(l.Dir, "meditation_part_x.wav"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(l.Dir, "notes.txt"), []byte("x"), 0o644))

	files, err := l.SegmentFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{l.SegmentFile(1), l.SegmentFile(2), l.SegmentFile(10)}, files)
}

func TestRequire(t *testing.T) {
	t.Parallel()

	l, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)

	err = workspace.Require(l.Merged(), stage.CombineAudio)
	require.Error(t, err)
	var se *stage.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, stage.Precondition, se.Kind)
	assert.Equal(t, stage.CombineAudio, se.Stage)

	require.NoError(t, os.WriteFile(l.Merged(), []byte("x"), 0o644))
	assert.NoError(t, workspace.Require(l.Merged(), stage.CombineAudio))
}

func TestExportCopiesFinalArtifacts(t *testing.T) {
	t.Parallel()

	l, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(l.Mixed(), []byte("audio"), 0o644))
	require.NoError(t, os.WriteFile(l.VideoFile(), []byte("video"), 0o644))

	out := t.TempDir()
	copied, err := l.Export(out)
	require.NoError(t, err)
	require.Len(t, copied, 2)

	data, err := os.ReadFile(filepath.Join(out, filepath.Base(l.Mixed())))
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
}

func TestExportSkipsMissingArtifacts(t *testing.T) {
	t.Parallel()

	l, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(l.Mixed(), []byte("audio"), 0o644))

	copied, err := l.Export(t.TempDir())
	require.NoError(t, err)
	assert.Len(t, copied, 1)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	l, err := workspace.New(t.TempDir(), "Calm")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(l.Merged(), []byte("x"), 0o644))
	require.NoError(t, l.Delete())
	assert.NoDirExists(t, l.Dir)
}
