package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/scribe-archive/scribe/internal/provider"
)

const microsoftEndpoint = "https://api.cognitive.microsofttranslator.com/translate"

// MicrosoftProvider translates through the Microsoft Translator v3.0
// REST API.
type MicrosoftProvider struct {
	apiKey   string
	location string
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

func NewMicrosoftProvider(apiKey, location string, logger zerolog.Logger) *MicrosoftProvider {
	if location == "" {
		location = "global"
	}
	return &MicrosoftProvider{
		apiKey:   apiKey,
		location: location,
		endpoint: microsoftEndpoint,
		client:   &http.Client{},
		log:      logger.With().Str("provider", "microsoft").Logger(),
	}
}

func (p *MicrosoftProvider) Name() string { return "microsoft" }

func (p *MicrosoftProvider) MaxChunkChars() int { return 2500 }

func (p *MicrosoftProvider) Supports(sourceLang, targetLang string) bool {
	// Translator covers every language this pipeline targets.
	return true
}

func (p *MicrosoftProvider) Translate(ctx context.Context, text, targetLang, sourceLang string, opts Options) (string, error) {
	payload, err := json.Marshal([]map[string]string{{"text": text}})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", provider.ErrPermanent, err)
	}
	q := req.URL.Query()
	q.Set("api-version", "3.0")
	q.Set("to", normalizeMicrosoft(targetLang))
	if sourceLang != "" {
		q.Set("from", normalizeMicrosoft(sourceLang))
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)
	req.Header.Set("Ocp-Apim-Subscription-Region", p.location)
	req.Header.Set("Content-Type", "application/json")

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

	var result []struct {
		Translations []struct {
			Text string `json:"text"`
			To   string `json:"to"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", provider.ErrPermanent, err)
	}
	if len(result) == 0 || len(result[0].Translations) == 0 {
		return "", fmt.Errorf("%w: empty translation response", provider.ErrPermanent)
	}
	return result[0].Translations[0].Text, nil
}
