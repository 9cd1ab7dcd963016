package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"

	"github.com/scribe-archive/scribe/internal/provider"
)

// germanDiacritics is the cheap lint for untranslated source
// fragments left in the output.
var germanDiacritics = regexp.MustCompile(`[äöüßÄÖÜ]`)

// OpenAIProvider translates with a chat model under a strict JSON
// contract: {"translation": string, "has_foreign": bool}. When the
// model flags foreign words, the output is re-run through the fallback
// model once.
type OpenAIProvider struct {
	client        openai.Client
	primaryModel  string
	fallbackModel string
	log           zerolog.Logger
}

func NewOpenAIProvider(apiKey, primaryModel, fallbackModel string, logger zerolog.Logger) *OpenAIProvider {
	if primaryModel == "" {
		primaryModel = "gpt-4.1"
	}
	if fallbackModel == "" {
		fallbackModel = "gpt-4.1-mini"
	}
	return &OpenAIProvider{
		client:        openai.NewClient(option.WithAPIKey(apiKey)),
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
		log:           logger.With().Str("provider", "openai").Logger(),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// MaxChunkChars stays far under the context window so the JSON reply
// never truncates.
func (p *OpenAIProvider) MaxChunkChars() int { return 45000 }

func (p *OpenAIProvider) Supports(sourceLang, targetLang string) bool {
	return true
}

type llmTranslation struct {
	Translation string `json:"translation"`
	HasForeign  bool   `json:"has_foreign"`
}

func (p *OpenAIProvider) Translate(ctx context.Context, text, targetLang, sourceLang string, opts Options) (string, error) {
	systemMsg := fmt.Sprintf(
		"You are a professional translator. "+
			"Translate any incoming text to %s only. "+
			"No words from any other language may appear except immutable proper nouns "+
			"(people, place, organisation names). "+
			"Retain paragraph and line breaks and speaker labels. "+
			"Return strict JSON with keys \"translation\" (string) and \"has_foreign\" (boolean).",
		LanguageName(targetLang))

	result, err := p.callModel(ctx, p.primaryModel, systemMsg, text)
	if err != nil {
		p.log.Warn().Err(err).Msg("primary model failed, trying fallback")
		result, err = p.callModel(ctx, p.fallbackModel, systemMsg, text)
		if err != nil {
			return "", err
		}
	}

	// One automatic lint pass on the output when the model admits
	// foreign words slipped through.
	if result.HasForeign {
		relinted, rerr := p.callModel(ctx, p.fallbackModel, systemMsg, result.Translation)
		if rerr == nil {
			result = relinted
		} else {
			p.log.Warn().Err(rerr).Msg("lint retry failed, keeping first pass")
		}
	}

	// The corpus is German-language interviews; a surviving umlaut in
	// any non-German target means an untranslated fragment.
	if toISO1(targetLang) == "de" {
		return result.Translation, nil
	}
	if germanDiacritics.MatchString(result.Translation) {
		return "", fmt.Errorf("%w: untranslated fragment detected in output", provider.ErrPermanent)
	}
	return result.Translation, nil
}

func (p *OpenAIProvider) callModel(ctx context.Context, model, systemMsg, text string) (llmTranslation, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemMsg),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0.0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return llmTranslation{}, fmt.Errorf("%w: %v", provider.ErrTransient, err)
	}
	if len(resp.Choices) == 0 {
		return llmTranslation{}, fmt.Errorf("%w: empty completion", provider.ErrPermanent)
	}

	var out llmTranslation
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return llmTranslation{}, fmt.Errorf("%w: non-JSON completion: %v", provider.ErrPermanent, err)
	}
	out.Translation = strings.TrimSpace(out.Translation)
	if out.Translation == "" {
		return llmTranslation{}, fmt.Errorf("%w: empty translation in completion", provider.ErrPermanent)
	}
	return out, nil
}
