// Package quality scores finished translations with an LLM judge and
// records the verdicts. It reads artifacts and writes only
// quality_evaluations rows.
package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"

	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/store"
	"github.com/scribe-archive/scribe/internal/translate"
)

// excerptChars bounds how much of each text goes to the judge.
const excerptChars = 6000

// Evaluator asks a chat model to score translation quality 0-10.
type Evaluator struct {
	store  *store.Store
	layout *layout.Layout
	client openai.Client
	model  string
	log    zerolog.Logger
}

func NewEvaluator(st *store.Store, lay *layout.Layout, apiKey, model string, logger zerolog.Logger) *Evaluator {
	if model == "" {
		model = "gpt-4.1"
	}
	return &Evaluator{
		store:  st,
		layout: lay,
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		log:    logger.With().Str("component", "quality").Logger(),
	}
}

type verdict struct {
	Score   float64  `json:"score"`
	Issues  []string `json:"issues"`
	Comment string   `json:"comment"`
}

// EvaluateFile judges one (file, language) translation against its
// transcript and stores the result.
func (e *Evaluator) EvaluateFile(ctx context.Context, rec *store.FileRecord, lang string) (float64, error) {
	transcript, err := readExcerpt(e.layout.TranscriptPath(rec.SafeFilename))
	if err != nil {
		return 0, fmt.Errorf("reading transcript: %w", err)
	}
	translation, err := readExcerpt(e.layout.TranslationPath(rec.SafeFilename, lang))
	if err != nil {
		return 0, fmt.Errorf("reading translation: %w", err)
	}

	systemMsg := "You are a professional translation quality evaluator. " +
		"Score the candidate translation from 0 to 10 for accuracy, fluency and completeness against the source. " +
		"Return strict JSON with keys \"score\" (number), \"issues\" (array of short strings) and \"comment\" (string)."
	userMsg := fmt.Sprintf("Target language: %s\n\nSource text:\n%s\n\nCandidate translation:\n%s",
		translate.LanguageName(lang), transcript, translation)

	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemMsg),
			openai.UserMessage(userMsg),
		},
		Temperature: openai.Float(0.0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Choices) == 0 {
		return 0, fmt.Errorf("empty completion")
	}

	var v verdict
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &v); err != nil {
		return 0, fmt.Errorf("non-JSON verdict: %w", err)
	}
	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 10 {
		v.Score = 10
	}

	if err := e.store.RecordQuality(rec.FileID, lang, e.model, v.Score, v.Issues, v.Comment); err != nil {
		return 0, err
	}
	e.log.Info().
		Str("file_id", rec.FileID).
		Str("lang", lang).
		Float64("score", v.Score).
		Msg("quality evaluation recorded")
	return v.Score, nil
}

func readExcerpt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("empty artifact: %s", path)
	}
	if len(text) > excerptChars {
		text = text[:excerptChars]
	}
	return text, nil
}
