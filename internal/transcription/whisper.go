package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/archivista/knowledge-pipeline/pkg/apperrors"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
	"github.com/archivista/knowledge-pipeline/pkg/resilience"
	"github.com/archivista/knowledge-pipeline/pkg/storage"
)

// WhisperClient transcribes audio through an OpenAI-compatible
// /audio/transcriptions endpoint with word-level timestamps.
type WhisperClient struct {
	baseURL string
	apiKey  string
	model   string
	storage storage.Storage
	client  *http.Client
	logger  logger.Logger
}

type WhisperConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewWhisperClient(cfg WhisperConfig, store storage.Storage, log logger.Logger) (*WhisperClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transcription base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 50 * time.Minute
	}
	return &WhisperClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		storage: store,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}, nil
}

func (c *WhisperClient) Transcribe(ctx context.Context, sourceURI string) (*Result, error) {
	key, err := storage.KeyFromURI(sourceURI)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = resilience.Retry(ctx, c.logger, "transcribe", resilience.RetryConfig{}, apperrors.Transient, func() error {
		obj, err := c.storage.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("fetching audio %s: %w", key, err)
		}
		defer obj.Close()

		result, err = c.request(ctx, key, obj)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *WhisperClient) request(ctx context.Context, filename string, audio io.Reader) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, err
	}
	_ = mw.WriteField("model", c.model)
	_ = mw.WriteField("response_format", "verbose_json")
	_ = mw.WriteField("timestamp_granularities[]", "word")
	if err := mw.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/audio/transcriptions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrProviderTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: transcription returned %s", apperrors.ErrProviderTransient, resp.Status)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: transcription returned %s", apperrors.ErrProviderPermanent, resp.Status)
	}

	var out struct {
		Text  string `json:"text"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding transcription response: %w", err)
	}

	words := make([]Word, 0, len(out.Words))
	for _, w := range out.Words {
		words = append(words, Word{Text: w.Word, StartTime: w.Start, EndTime: w.End})
	}
	return &Result{Transcript: out.Text, Words: words}, nil
}
