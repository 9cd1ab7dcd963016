package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scribe-archive/scribe/internal/provider"
)

const (
	deeplEndpoint     = "https://api.deepl.com/v2/translate"
	deeplFreeEndpoint = "https://api-free.deepl.com/v2/translate"
)

// DeepLProvider translates through the DeepL REST API. DeepL does not
// offer Hebrew as a target; the engine routes around that.
type DeepLProvider struct {
	apiKey   string
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

func NewDeepLProvider(apiKey string, logger zerolog.Logger) *DeepLProvider {
	endpoint := deeplEndpoint
	if strings.HasSuffix(apiKey, ":fx") {
		endpoint = deeplFreeEndpoint
	}
	return &DeepLProvider{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{},
		log:      logger.With().Str("provider", "deepl").Logger(),
	}
}

func (p *DeepLProvider) Name() string { return "deepl" }

func (p *DeepLProvider) MaxChunkChars() int { return 4500 }

func (p *DeepLProvider) Supports(sourceLang, targetLang string) bool {
	if toISO1(targetLang) == "he" {
		return false
	}
	_, ok := deeplTarget[toISO1(targetLang)]
	if !ok {
		return false
	}
	if sourceLang == "" {
		return true
	}
	_, ok = deeplSource[toISO1(sourceLang)]
	return ok
}

func (p *DeepLProvider) Translate(ctx context.Context, text, targetLang, sourceLang string, opts Options) (string, error) {
	form := url.Values{}
	form.Set("text", text)
	form.Set("target_lang", normalizeDeepLTarget(targetLang))
	if sourceLang != "" {
		form.Set("source_lang", normalizeDeepLSource(sourceLang))
	}
	switch opts.Formality {
	case FormalityMore:
		form.Set("formality", "prefer_more")
	case FormalityLess:
		form.Set("formality", "prefer_less")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", provider.ErrPermanent, err)
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+p.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", provider.ErrTransient, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", provider.ClassifyHTTP(resp.StatusCode, string(body))
	}

	var result struct {
		Translations []struct {
			DetectedSourceLanguage string `json:"detected_source_language"`
			Text                   string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", provider.ErrPermanent, err)
	}
	if len(result.Translations) == 0 {
		return "", fmt.Errorf("%w: empty translation response", provider.ErrPermanent)
	}

	p.log.Debug().
		Str("target", targetLang).
		Str("detected_source", result.Translations[0].DetectedSourceLanguage).
		Int("chars", len(text)).
		Msg("translation received")
	return result.Translations[0].Text, nil
}
