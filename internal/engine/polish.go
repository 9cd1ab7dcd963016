package engine

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"
)

// maxGlossaryPromptEntries caps how many glossary mappings go into the
// polish prompt.
const maxGlossaryPromptEntries = 200

// Polisher refines Hebrew drafts with an LLM pass that enforces a
// source→Hebrew glossary.
type Polisher struct {
	client   openai.Client
	model    string
	glossary []glossaryEntry
	log      zerolog.Logger
}

type glossaryEntry struct {
	Source string
	Hebrew string
}

// NewPolisher loads the glossary and returns a ready polisher, or nil
// when the capability is not configured (no key or no usable
// glossary).
func NewPolisher(apiKey, model, glossaryFile string, logger zerolog.Logger) *Polisher {
	if apiKey == "" || glossaryFile == "" {
		return nil
	}
	glossary, err := loadGlossary(glossaryFile)
	if err != nil {
		logger.Warn().Err(err).Str("file", glossaryFile).Msg("could not load glossary, polish disabled")
		return nil
	}
	if len(glossary) == 0 {
		return nil
	}
	if model == "" {
		model = "gpt-4.1"
	}
	return &Polisher{
		client:   openai.NewClient(option.WithAPIKey(apiKey)),
		model:    model,
		glossary: glossary,
		log:      logger.With().Str("component", "polisher").Logger(),
	}
}

// loadGlossary reads "source,hebrew" CSV lines.
func loadGlossary(path string) ([]glossaryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []glossaryEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		src, heb, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		src = strings.TrimSpace(src)
		heb = strings.TrimSpace(heb)
		if src != "" && heb != "" {
			out = append(out, glossaryEntry{Source: src, Hebrew: heb})
		}
	}
	return out, scanner.Err()
}

// PolishHebrew asks the model to improve fluency and RTL formatting of
// a draft while enforcing the glossary. The whole reply is the
// polished text.
func (p *Polisher) PolishHebrew(ctx context.Context, sourceText, draftHebrew string) (string, error) {
	if strings.TrimSpace(draftHebrew) == "" {
		return "", fmt.Errorf("empty draft")
	}

	var glossaryLines []string
	for i, e := range p.glossary {
		if i >= maxGlossaryPromptEntries {
			break
		}
		glossaryLines = append(glossaryLines, e.Source+" -> "+e.Hebrew)
	}

	prompt := "You are a professional Hebrew translator and editor. " +
		"Your task: improve fluency, idiom, grammar, punctuation and RTL formatting while preserving 100% meaning. " +
		"Ensure the following glossary mappings are respected exactly. If a term appears in the source, use the given Hebrew equivalent.\n\n" +
		"Glossary (source -> Hebrew):\n" + strings.Join(glossaryLines, "\n") + "\n\n" +
		"Source text:\n" + sourceText + "\n\n" +
		"Current Hebrew draft:\n" + draftHebrew + "\n\n" +
		"Return ONLY the polished Hebrew text."

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a professional translator. Translate from the source language to Hebrew accurately and entirely in Hebrew. Do not include any source-language words, except proper nouns."),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
