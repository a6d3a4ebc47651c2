// Package oai wraps the OpenAI API surface the pipeline uses: chat
// completions for planning/keywords, speech synthesis, and image generation.
// Stages depend on the Backend interface so tests can run against a
// deterministic stub.
package oai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
)

// Backend is the generative surface consumed by the pipeline stages.
type Backend interface {
	// Chat sends a single user prompt and returns the raw text response.
	Chat(ctx context.Context, prompt string) (string, error)
	// Speech synthesizes text with the named voice and returns WAV bytes.
	Speech(ctx context.Context, text, voice string) ([]byte, error)
	// Image generates an image for the prompt and returns the encoded bytes.
	Image(ctx context.Context, prompt string) ([]byte, error)
}

var ErrEmptyPrompt = errors.New("empty prompt")

// Options carries the model selection for a Client.
type Options struct {
	ChatModel    string
	TTSModel     string
	ImageModel   string
	ImageQuality string
	ImageSize    string
}

// Client is the production Backend on top of go-openai.
type Client struct {
	api  *openai.Client
	opts Options
	http *http.Client
}

func NewClient(apiKey string, opts Options) *Client {
	return &Client{
		api:  openai.NewClient(apiKey),
		opts: opts,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.opts.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) Speech(ctx context.Context, text, voice string) ([]byte, error) {
	if text == "" {
		return nil, ErrEmptyPrompt
	}
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.opts.TTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatWav,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech response: %w", err)
	}
	return data, nil
}

func (c *Client) Image(ctx context.Context, prompt string) ([]byte, error) {
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Model:          c.opts.ImageModel,
		Prompt:         prompt,
		Size:           c.opts.ImageSize,
		Quality:        c.opts.ImageQuality,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("image generation returned no data")
	}
	return c.download(ctx, resp.Data[0].URL)
}

// download fetches the generated image URL with bounded retry; the hosted
// URLs are occasionally slow to become readable.
func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("image download: status %d", resp.StatusCode)
		}
		data, err = io.ReadAll(resp.Body)
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("download generated image: %w", err)
	}
	return data, nil
}
