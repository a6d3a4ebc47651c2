// Package assets manages the cached ambient music library. On first use the
// bundled manifest is downloaded into the sounds directory; later runs reuse
// the cache.
package assets

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	ErrNoAmbientFiles = errors.New("sounds directory contains no ambient WAV files")
	ErrEmptyManifest  = errors.New("ambient manifest is empty")
)

// DefaultManifest lists the ambient tracks fetched on first run. Override
// with a manifest file next to the sounds directory (ambient_files_urls.txt,
// one URL per line) to build a custom library.
var DefaultManifest = []string{
	"https://archive.org/download/relaxing-ambient-music/calm_ocean_waves.wav",
	"https://archive.org/download/relaxing-ambient-music/forest_rain.wav",
	"https://archive.org/download/relaxing-ambient-music/soft_wind_chimes.wav",
	"https://archive.org/download/relaxing-ambient-music/mountain_stream.wav",
}

const manifestFileName = "ambient_files_urls.txt"

// Library is the on-disk ambient sound cache.
type Library struct {
	Dir  string
	http *http.Client
}

func NewLibrary(dir string) *Library {
	return &Library{Dir: dir, http: &http.Client{Timeout: 5 * time.Minute}}
}

// Ensure downloads the ambient library if the directory does not exist yet.
// A failed bootstrap removes the partial directory so the next run retries
// from scratch.
func (l *Library) Ensure() error {
	if _, err := os.Stat(l.Dir); err == nil {
		return nil
	}
	urls, err := l.manifest()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("create sounds directory: %w", err)
	}
	for i, u := range urls {
		if i > 0 {
			// gentle pacing so the host does not throttle the batch
			time.Sleep(time.Duration(500+rand.Intn(1000)) * time.Millisecond)
		}
		if err := l.fetch(u); err != nil {
			_ = os.RemoveAll(l.Dir)
			return fmt.Errorf("download ambient library: %w", err)
		}
	}
	return nil
}

func (l *Library) manifest() ([]string, error) {
	override := filepath.Join(filepath.Dir(l.Dir), manifestFileName)
	data, err := os.ReadFile(override)
	if err != nil {
		return DefaultManifest, nil
	}
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	if len(urls) == 0 {
		return nil, ErrEmptyManifest
	}
	return urls, nil
}

func (l *Library) fetch(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("bad manifest URL %q: %w", rawURL, err)
	}
	dst := filepath.Join(l.Dir, path.Base(parsed.Path))

	operation := func() error {
		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		// some hosts refuse requests without an audio Accept header
		req.Header.Set("Accept", acceptFor(dst))
		resp, err := l.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
		}
		f, err := os.Create(dst)
		if err != nil {
			return backoff.Permanent(err)
		}
		if _, err := io.Copy(f, resp.Body); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	return backoff.Retry(operation, b)
}

func acceptFor(name string) string {
	if strings.HasSuffix(name, ".mp3") {
		return "audio/mpeg"
	}
	return "audio/wav"
}

// Pick selects one ambient WAV at random from the library.
func (l *Library) Pick(rng *rand.Rand) (string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return "", fmt.Errorf("read sounds directory: %w", err)
	}
	var wavs []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".wav") {
			wavs = append(wavs, filepath.Join(l.Dir, e.Name()))
		}
	}
	if len(wavs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoAmbientFiles, l.Dir)
	}
	return wavs[rng.Intn(len(wavs))], nil
}
