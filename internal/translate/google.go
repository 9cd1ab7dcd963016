package translate

import (
	"context"
	"fmt"

	gtranslate "cloud.google.com/go/translate"
	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/scribe-archive/scribe/internal/provider"
)

// GoogleProvider translates through the Google Cloud Translation v2
// API, authenticated with a service-account credentials file.
type GoogleProvider struct {
	client *gtranslate.Client
	log    zerolog.Logger
}

func NewGoogleProvider(ctx context.Context, credentialsFile string, logger zerolog.Logger) (*GoogleProvider, error) {
	client, err := gtranslate.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initializing Google Translation client: %w", err)
	}
	return &GoogleProvider{
		client: client,
		log:    logger.With().Str("provider", "google").Logger(),
	}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) MaxChunkChars() int { return 4500 }

func (p *GoogleProvider) Supports(sourceLang, targetLang string) bool {
	_, err := language.Parse(toISO1(targetLang))
	return err == nil
}

func (p *GoogleProvider) Translate(ctx context.Context, text, targetLang, sourceLang string, opts Options) (string, error) {
	target, err := language.Parse(toISO1(targetLang))
	if err != nil {
		return "", fmt.Errorf("%w: target language %q: %v", provider.ErrPermanent, targetLang, err)
	}

	gopts := &gtranslate.Options{Format: gtranslate.Text}
	if sourceLang != "" {
		if source, err := language.Parse(toISO1(sourceLang)); err == nil {
			gopts.Source = source
		}
	}

	results, err := p.client.Translate(ctx, []string{text}, target, gopts)
	if err != nil {
		// The client folds HTTP status into opaque googleapi errors;
		// treat them as transient and let the retry policy bound it.
		return "", fmt.Errorf("%w: %v", provider.ErrTransient, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: empty translation response", provider.ErrPermanent)
	}
	return results[0].Text, nil
}

// Close releases the underlying API client.
func (p *GoogleProvider) Close() error {
	return p.client.Close()
}
