// Gemini generateContent implementation of [Gateway]
//
// Request and response shapes based on https://ai.google.dev/api/generate-content
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/aleerpe/internal/models"
	"github.com/desertthunder/aleerpe/internal/shared"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com"
	geminiDefaultModel = "gemini-2.5-flash"
	geminiAPIKeyHeader = "x-goog-api-key"
	maxErrorBody       = 4 << 10
)

const translatePrompt = `Analyze this manga page image.
Identify all speech bubbles, narration boxes, or sound effects containing text.
Transcribe the original text and translate it into natural-sounding %s.
Identify the likely speaker if possible (or use 'Narration', 'SFX', 'Unknown').

Return a JSON array where each object has:
- originalText: The text in the image.
- translatedText: The translated text.
- speaker: The character speaking or source of text.
Return an empty array when the page has no text.`

const narratePrompt = `Analyze this manga page image.
Extract ALL text from speech bubbles, narration boxes, and sound effects.
Translate everything into natural, fluent %s.

Return a JSON object with a single "script" field containing the translated text
as a flowing narrative suitable for audio narration.
Combine all dialogues into a coherent script.
Include speaker attributions where clear (e.g., "Character Name says:").
Return an empty script when the page has no text.`

var translationSchema = map[string]any{
	"type": "ARRAY",
	"items": map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"originalText":   map[string]any{"type": "STRING"},
			"translatedText": map[string]any{"type": "STRING"},
			"speaker":        map[string]any{"type": "STRING"},
		},
		"required": []string{"originalText", "translatedText"},
	},
}

var narrationSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"script": map[string]any{"type": "STRING"},
	},
	"required": []string{"script"},
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType"`
	ResponseSchema   any    `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback"`
}

// GeminiOpts configures a [GeminiService].
type GeminiOpts struct {
	BaseURL     string
	APIKey      string
	AccessToken string // OAuth2 bearer token, used instead of APIKey when set
	Model       string
	Timeout     time.Duration
	RateLimit   float64 // requests per second, 0 disables pacing
	HTTPClient  *http.Client
	Logger      *log.Logger
}

// GeminiService reads manga pages with the Gemini generateContent API.
//
// Requests are authenticated with an API key header or, when an access token is configured, through an [oauth2]
// transport. Every response is decoded against a strict schema; anything else is reported as
// [shared.ErrInvalidResponse].
type GeminiService struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewGeminiService creates a new Gemini gateway. Either an API key or an access token is required.
func NewGeminiService(opts GeminiOpts) (*GeminiService, error) {
	if opts.APIKey == "" && opts.AccessToken == "" {
		return nil, fmt.Errorf("%w: gateway api_key or access_token", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = geminiBaseURL
	}
	if opts.Model == "" {
		opts.Model = geminiDefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	s := &GeminiService{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		model:   opts.Model,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}

	if opts.AccessToken != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken, TokenType: "Bearer"})
		s.httpClient = oauth2.NewClient(ctx, src)
	} else {
		s.apiKey = opts.APIKey
		s.httpClient = client
	}

	if opts.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return s, nil
}

func (s *GeminiService) Name() string {
	return "Gemini"
}

// TranslatePage detects and translates every text region of page.
func (s *GeminiService) TranslatePage(ctx context.Context, page models.PageImage, lang models.Language) ([]models.TranslationResult, error) {
	text, err := s.generate(ctx, page, fmt.Sprintf(translatePrompt, lang.Name()), translationSchema)
	if err != nil {
		return nil, err
	}

	results, err := decodeTranslations(text)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("page translated", "page", page.Ref, "lang", lang, "results", len(results))
	return results, nil
}

// NarratePage produces the narration script of page.
func (s *GeminiService) NarratePage(ctx context.Context, page models.PageImage, lang models.Language) (string, error) {
	text, err := s.generate(ctx, page, fmt.Sprintf(narratePrompt, lang.Name()), narrationSchema)
	if err != nil {
		return "", err
	}

	script, err := decodeScript(text)
	if err != nil {
		return "", err
	}
	s.logger.Debug("page narrated", "page", page.Ref, "lang", lang, "chars", len(script))
	return script, nil
}

// generate sends one image and prompt and returns the text of the first candidate.
func (s *GeminiService) generate(ctx context.Context, page models.PageImage, prompt string, schema any) (string, error) {
	if len(page.Data) == 0 {
		return "", fmt.Errorf("%w: page %s has no image data", shared.ErrInvalidInput, page.Ref)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	mimeType := page.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(page.Data)}},
				{Text: prompt},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", s.baseURL, url.PathEscape(s.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set(geminiAPIKeyHeader, s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: request failed: %w", shared.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: gemini API error: status %d: %s", shared.ErrGateway, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %w", shared.ErrInvalidResponse, err)
	}

	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked: %s", shared.ErrGateway, result.PromptFeedback.BlockReason)
	}
	if len(result.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", shared.ErrInvalidResponse)
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("%w: empty candidate (finish reason %q)", shared.ErrInvalidResponse, result.Candidates[0].FinishReason)
	}
	return text.String(), nil
}

type translationItem struct {
	OriginalText   *string `json:"originalText"`
	TranslatedText *string `json:"translatedText"`
	Speaker        *string `json:"speaker"`
}

// decodeTranslations validates the translation array returned by the model.
//
// Unknown fields and items without a translation are rejected. A missing or blank speaker becomes
// [models.UnknownSpeaker].
func decodeTranslations(text string) ([]models.TranslationResult, error) {
	var items []translationItem
	if err := strictDecode(text, &items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, fmt.Errorf("%w: expected a JSON array", shared.ErrInvalidResponse)
	}

	results := make([]models.TranslationResult, 0, len(items))
	for i, item := range items {
		if item.TranslatedText == nil {
			return nil, fmt.Errorf("%w: item %d has no translatedText", shared.ErrInvalidResponse, i)
		}

		r := models.TranslationResult{TranslatedText: *item.TranslatedText, Speaker: models.UnknownSpeaker}
		if item.OriginalText != nil {
			r.OriginalText = *item.OriginalText
		}
		if item.Speaker != nil && strings.TrimSpace(*item.Speaker) != "" {
			r.Speaker = strings.TrimSpace(*item.Speaker)
		}
		results = append(results, r)
	}
	return results, nil
}

// decodeScript validates the narration object returned by the model.
func decodeScript(text string) (string, error) {
	var out struct {
		Script *string `json:"script"`
	}
	if err := strictDecode(text, &out); err != nil {
		return "", err
	}
	if out.Script == nil {
		return "", fmt.Errorf("%w: missing script", shared.ErrInvalidResponse)
	}
	return *out.Script, nil
}

func strictDecode(text string, v any) error {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(text)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidResponse, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON value", shared.ErrInvalidResponse)
	}
	return nil
}
