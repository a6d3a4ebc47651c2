package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// The pipeline only ever trades in 16-bit PCM RIFF files: the TTS API emits
// them on request and every intermediate artifact is written by us.

var (
	ErrNotWAV      = errors.New("not a RIFF/WAVE file")
	ErrUnsupported = errors.New("unsupported WAV encoding")
	errShortChunk  = errors.New("truncated chunk")
)

const (
	wavFormatPCM   = 1
	wavBitsPerSamp = 16
	int16Scale     = 32768.0
)

// ReadWAV loads a 16-bit PCM WAV file. Mono files are upmixed to stereo.
func ReadWAV(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()
	return DecodeWAV(f)
}

// DecodeWAV parses a 16-bit PCM WAV stream.
func DecodeWAV(r io.Reader) (*Clip, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		rate     int
		channels int
		haveFmt  bool
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: no data chunk", ErrNotWAV)
			}
			return nil, err
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])
		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, errShortChunk
			}
			if len(body) < 16 {
				return nil, errShortChunk
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			rate = int(binary.LittleEndian.Uint32(body[4:8]))
			bits := binary.LittleEndian.Uint16(body[14:16])
			if format != wavFormatPCM || bits != wavBitsPerSamp {
				return nil, fmt.Errorf("%w: format=%d bits=%d", ErrUnsupported, format, bits)
			}
			if channels != 1 && channels != 2 {
				return nil, fmt.Errorf("%w: %d channels", ErrUnsupported, channels)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, errShortChunk
			}
			return decodePCM16(body, channels, rate), nil
		default:
			// skip unknown chunks (LIST, fact, ...)
			if _, err := io.CopyN(io.Discard, r, int64(size)); err != nil {
				return nil, errShortChunk
			}
		}
		// chunks are word-aligned
		if size%2 == 1 {
			if _, err := io.CopyN(io.Discard, r, 1); err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
		}
	}
}

func decodePCM16(body []byte, channels, rate int) *Clip {
	frames := len(body) / (2 * channels)
	c := &Clip{L: make([]float64, frames), R: make([]float64, frames), Rate: rate}
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(body[i*2*channels:]))
		c.L[i] = float64(l) / int16Scale
		if channels == 2 {
			r := int16(binary.LittleEndian.Uint16(body[i*2*channels+2:]))
			c.R[i] = float64(r) / int16Scale
		} else {
			c.R[i] = c.L[i]
		}
	}
	return c
}

// WriteWAV writes the clip as a stereo 16-bit PCM WAV file.
func WriteWAV(path string, c *Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := EncodeWAV(f, c); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

// EncodeWAV writes the clip to w as stereo 16-bit PCM.
func EncodeWAV(w io.Writer, c *Clip) error {
	const channels = 2
	dataLen := c.Len() * 2 * channels
	byteRate := c.Rate * 2 * channels

	var header [44]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(c.Rate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], 2*channels)
	binary.LittleEndian.PutUint16(header[34:36], wavBitsPerSamp)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	buf := make([]byte, dataLen)
	for i := 0; i < c.Len(); i++ {
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(clampInt16(c.L[i])))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(clampInt16(c.R[i])))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}

func clampInt16(v float64) int16 {
	s := math.Round(v * int16Scale)
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int16(s)
}
