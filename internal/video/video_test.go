package video_test

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meditation-video-go/internal/audio"
	"meditation-video-go/internal/video"
)

func TestMuxArgs(t *testing.T) {
	t.Parallel()

	args := video.MuxArgs("bg.jpg", "mix.wav", "out.mp4")
	joined := strings.Join(args, " ")

	// the still image loops for the whole audio track
	assert.Contains(t, joined, "-loop 1 -i bg.jpg")
	assert.Contains(t, joined, "-i mix.wav")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-tune stillimage")
	assert.Contains(t, joined, "-c:a aac")
	assert.Contains(t, joined, "-shortest")
	assert.Equal(t, "out.mp4", args[len(args)-1])
	// overwrite without prompting so reruns do not hang
	assert.Equal(t, "-y", args[0])
}

func TestMuxArgsOrdersInputsBeforeCodecs(t *testing.T) {
	t.Parallel()

	args := video.MuxArgs("a.jpg", "b.wav", "c.mp4")
	joined := strings.Join(args, " ")
	assert.Less(t, strings.Index(joined, "-i a.jpg"), strings.Index(joined, "-c:v"))
	assert.Less(t, strings.Index(joined, "-i b.wav"), strings.Index(joined, "-c:a"))
}

func TestMuxedVideoMatchesAudioDuration(t *testing.T) {
	t.Parallel()

	if err := video.EnsureTools(); err != nil {
		t.Skipf("ffmpeg tools unavailable: %v", err)
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "track.wav")
	clip := &audio.Clip{Rate: 8000}
	for i := 0; i < 8000; i++ { // one second of tone
		v := 0.2 * math.Sin(2*math.Pi*220*float64(i)/8000)
		clip.L = append(clip.L, v)
		clip.R = append(clip.R, v)
	}
	require.NoError(t, audio.WriteWAV(wavPath, clip))

	imgPath := filepath.Join(dir, "still.jpg")
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 20, G: 40, B: 90, A: 255})
		}
	}
	f, err := os.Create(imgPath)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())

	outPath := filepath.Join(dir, "out.mp4")
	require.NoError(t, video.Mux(context.Background(), imgPath, wavPath, outPath, time.Minute))

	audioDur, err := video.ProbeDuration(wavPath)
	require.NoError(t, err)
	videoDur, err := video.ProbeDuration(outPath)
	require.NoError(t, err)
	assert.InDelta(t, audioDur, videoDur, 0.25)
	assert.InDelta(t, 1.0, videoDur, 0.25)
}
