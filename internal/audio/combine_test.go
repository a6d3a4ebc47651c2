package audio_test

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meditation-video-go/internal/audio"
)

// writeSegment drops a constant-amplitude WAV of the given length into dir.
func writeSegment(t *testing.T, dir string, name string, frames int, value float64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, audio.WriteWAV(path, constClip(frames, value)))
	return path
}

func TestCombineLayoutAndLength(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := []string{
		writeSegment(t, dir, "part_1.wav", testRate, 0.4), // 1s each
		writeSegment(t, dir, "part_2.wav", testRate, 0.4),
	}

	out, err := audio.Combine(files, audio.CombineOptions{
		TargetDuration: 10 * time.Second,
		FrontBuffer:    2 * time.Second,
		RearBuffer:     3 * time.Second,
		SampleRate:     testRate,
	})
	require.NoError(t, err)

	// front + target + rear: 2 + 10 + 3 seconds
	assert.Equal(t, 15*testRate, out.Len())

	// the front buffer is silent, the first segment starts right after it
	assert.Zero(t, out.L[2*testRate-1])
	assert.NotZero(t, out.L[2*testRate])

	// 8 seconds of deficit over 2 segments = 4s gap after each segment
	gapSample := 2*testRate + testRate + 2*testRate
	assert.Zero(t, out.L[gapSample])
}

func TestCombinePansByParity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := []string{
		writeSegment(t, dir, "part_1.wav", testRate, 0.4),
		writeSegment(t, dir, "part_2.wav", testRate, 0.4),
	}

	out, err := audio.Combine(files, audio.CombineOptions{
		TargetDuration: 4 * time.Second,
		BalanceEven:    -1,
		BalanceOdd:     1,
		SampleRate:     testRate,
	})
	require.NoError(t, err)

	// segment 1 hard left, segment 2 (after a 1s gap) hard right
	assert.NotZero(t, out.L[testRate/2])
	assert.Zero(t, out.R[testRate/2])
	second := 2*testRate + testRate/2
	assert.Zero(t, out.L[second])
	assert.NotZero(t, out.R[second])
}

func TestCombineParityResetsPerLoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// three segments per loop, two loops: index 3 is segment 1 again and
	// must come out on the even side
	var files []string
	for i := 1; i <= 6; i++ {
		files = append(files, writeSegment(t, dir, fmt.Sprintf("seg_%d.wav", i), testRate/2, 0.4))
	}

	out, err := audio.Combine(files, audio.CombineOptions{
		TargetDuration:  6 * time.Second,
		BalanceEven:     -1,
		BalanceOdd:      1,
		SampleRate:      testRate,
		SegmentsPerLoop: 3,
	})
	require.NoError(t, err)

	// layout: each 0.5s segment is followed by a 0.5s gap
	segmentStart := func(i int) int { return i * testRate } // seg i at i seconds
	mid := func(i int) int { return segmentStart(i) + testRate/4 }

	// first loop: left, right, left
	assert.NotZero(t, out.L[mid(0)])
	assert.Zero(t, out.L[mid(1)])
	assert.NotZero(t, out.L[mid(2)])
	// second loop restarts the parity: left again
	assert.NotZero(t, out.L[mid(3)])
	assert.Zero(t, out.R[mid(3)])
}

func TestCombineRejectsOverlongSpeech(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := []string{writeSegment(t, dir, "part_1.wav", 3*testRate, 0.4)}

	_, err := audio.Combine(files, audio.CombineOptions{
		TargetDuration: 2 * time.Second,
		SampleRate:     testRate,
	})
	assert.ErrorIs(t, err, audio.ErrTooLong)
}

func TestCombineRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := audio.Combine(nil, audio.CombineOptions{
		TargetDuration: time.Second,
		SampleRate:     testRate,
	})
	assert.ErrorIs(t, err, audio.ErrNoSegments)
}

func TestCombineResamplesSegments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	seg := constClip(testRate, 0.4) // 1s at 8 kHz
	seg.Rate = testRate
	path := filepath.Join(dir, "part_1.wav")
	require.NoError(t, audio.WriteWAV(path, seg))

	out, err := audio.Combine([]string{path}, audio.CombineOptions{
		TargetDuration: 2 * time.Second,
		SampleRate:     testRate * 2,
	})
	require.NoError(t, err)
	assert.Equal(t, testRate*2, out.Rate)
	assert.Equal(t, 4*testRate, out.Len()) // 2s at 16 kHz
}
