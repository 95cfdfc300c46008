// Package groq provides speech adapters over the Groq OpenAI-compatible
// audio API: speech-to-text for candidate answers and text-to-speech for
// emitted questions.
package groq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fairyhunter13/ai-interviewer/internal/domain"
	"github.com/fairyhunter13/ai-interviewer/internal/observability"
)

// Transcriber implements domain.Transcriber via POST /audio/transcriptions.
type Transcriber struct {
	baseURL string
	apiKey  string
	model   string
	hc      *http.Client
}

// NewTranscriber constructs a Transcriber.
func NewTranscriber(baseURL, apiKey, model string, timeout time.Duration) *Transcriber {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Transcriber{baseURL: baseURL, apiKey: apiKey, model: model, hc: &http.Client{Timeout: timeout}}
}

// Transcribe converts one audio recording to text. Failures surface to
// the caller, which records the sentinel answer text instead.
func (t *Transcriber) Transcribe(ctx domain.Context, audio io.Reader, filename string) (string, error) {
	if t.apiKey == "" {
		return "", fmt.Errorf("%w: GROQ_API_KEY missing", domain.ErrInvalidArgument)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("op=transcribe.form: %w", err)
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return "", fmt.Errorf("op=transcribe.copy: %w", err)
	}
	if err := mw.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("op=transcribe.form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("op=transcribe.form: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("op=transcribe.request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.hc.Do(req)
	observability.AIRequestsTotal.WithLabelValues("groq", "transcribe").Inc()
	observability.AIRequestDuration.WithLabelValues("groq", "transcribe").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("op=transcribe.do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcribe status %d", resp.StatusCode)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode transcription: %v", domain.ErrSchemaInvalid, err)
	}
	return out.Text, nil
}

// Synthesizer implements domain.Synthesizer via POST /audio/speech.
type Synthesizer struct {
	baseURL string
	apiKey  string
	model   string
	voice   string
	hc      *http.Client
}

// NewSynthesizer constructs a Synthesizer.
func NewSynthesizer(baseURL, apiKey, model, voice string, timeout time.Duration) *Synthesizer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Synthesizer{baseURL: baseURL, apiKey: apiKey, model: model, voice: voice, hc: &http.Client{Timeout: timeout}}
}

// Synthesize renders text as MP3 audio.
func (s *Synthesizer) Synthesize(ctx domain.Context, text string) ([]byte, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: GROQ_API_KEY missing", domain.ErrInvalidArgument)
	}
	payload, err := json.Marshal(map[string]string{
		"model":           s.model,
		"voice":           s.voice,
		"input":           text,
		"response_format": "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("op=speech.marshal: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("op=speech.request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	observability.AIRequestsTotal.WithLabelValues("groq", "speech").Inc()
	observability.AIRequestDuration.WithLabelValues("groq", "speech").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("op=speech.do: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("speech status %d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("op=speech.read: %w", err)
	}
	return audio, nil
}
