package voice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribe-archive/scribe/internal/provider"
)

const elevenLabsEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"

// ElevenLabsProvider transcribes audio through the ElevenLabs Scribe
// speech-to-text API.
type ElevenLabsProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

func NewElevenLabsProvider(apiKey string, logger zerolog.Logger) *ElevenLabsProvider {
	return &ElevenLabsProvider{
		apiKey:   apiKey,
		endpoint: elevenLabsEndpoint,
		client:   &http.Client{},
		log:      logger.With().Str("provider", "scribe").Logger(),
	}
}

func (p *ElevenLabsProvider) Name() string { return "scribe" }

func (p *ElevenLabsProvider) IsAvailable() bool { return p.apiKey != "" }

// Transcribe uploads the audio as streamed multipart form data and
// decodes the word-level response. One call, no retry: the engine owns
// the retry policy.
func (p *ElevenLabsProvider) Transcribe(ctx context.Context, audioPath string, opts TranscribeOptions) (*TranscriptionResult, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: no ElevenLabs API key configured", provider.ErrPermanent)
	}
	if opts.Model == "" {
		opts.Model = "scribe_v1"
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = 300
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.TimeoutSeconds)*time.Second)
	defer cancel()

	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening audio file: %v", provider.ErrPermanent, err)
	}
	defer file.Close()

	// Stream the upload through a pipe so large segments never sit in
	// memory twice.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()

		_ = writer.WriteField("model_id", opts.Model)
		if opts.LanguageCode != "" {
			_ = writer.WriteField("language_code", opts.LanguageCode)
		}
		_ = writer.WriteField("tag_audio_events", strconv.FormatBool(opts.TagAudioEvents))
		_ = writer.WriteField("diarize", strconv.FormatBool(opts.Diarize))
		if opts.WordTimestamps {
			_ = writer.WriteField("timestamps_granularity", "word")
		} else {
			_ = writer.WriteField("timestamps_granularity", "none")
		}

		part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
		if err != nil {
			pw.CloseWithError(fmt.Errorf("creating form file: %w", err))
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(fmt.Errorf("copying file data: %w", err))
			return
		}
		if err := writer.Close(); err != nil {
			pw.CloseWithError(fmt.Errorf("closing multipart writer: %w", err))
		}
	}()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", provider.ErrPermanent, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", provider.ErrTransient, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.ClassifyHTTP(resp.StatusCode, string(body))
	}

	var result TranscriptionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", provider.ErrPermanent, err)
	}
	result.Raw = json.RawMessage(body)

	p.log.Debug().
		Str("file", filepath.Base(audioPath)).
		Int("words", len(result.Words)).
		Str("language", result.DetectedLanguage).
		Msg("transcription response received")
	return &result, nil
}
