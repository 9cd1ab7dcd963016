package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/scribe-archive/scribe/internal/audit"
	"github.com/scribe-archive/scribe/internal/config"
	"github.com/scribe-archive/scribe/internal/discovery"
	"github.com/scribe-archive/scribe/internal/engine"
	"github.com/scribe-archive/scribe/internal/layout"
	"github.com/scribe-archive/scribe/internal/pipeline"
	"github.com/scribe-archive/scribe/internal/quality"
	"github.com/scribe-archive/scribe/internal/store"
	"github.com/scribe-archive/scribe/internal/translate"
	"github.com/scribe-archive/scribe/internal/voice"
)

// Exit codes: 0 success, 1 recoverable (items failed but the pipeline
// ran), 2 fatal configuration or store error.
const (
	exitOK          = 0
	exitRecoverable = 1
	exitFatal       = 2
)

// RootCmd is the base command.
var RootCmd = &cobra.Command{
	Use:   "scribe <command>",
	Short: "Durable batch transcription and translation pipeline",
	Long: `scribe drives a corpus of interview recordings through audio
extraction, speech-to-text transcription and multi-language
translation, tracking every stage per file so runs can be stopped,
resumed and audited.`,
	SilenceUsage: true,
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "path to the config file")

	RootCmd.AddCommand(addCmd)
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(monitorCmd)
	RootCmd.AddCommand(restartCmd)
	RootCmd.AddCommand(startCmd)
	RootCmd.AddCommand(retryCmd)
	RootCmd.AddCommand(specialCmd)
	RootCmd.AddCommand(fixCmd)
	RootCmd.AddCommand(verifyCmd)
	RootCmd.AddCommand(evaluateCmd)
	RootCmd.AddCommand(versionCmd)
}

// App owns every service for the lifetime of one command, constructed
// leaf-first: store, layout, adapters, engines, pipeline.
type App struct {
	Settings    config.Settings
	Store       *store.Store
	Layout      *layout.Layout
	Scanner     *discovery.Scanner
	Extractor   *engine.Extractor
	Transcriber *engine.Transcriber
	Translator  *engine.Translator
	Pipeline    *pipeline.Pipeline
	Auditor     *audit.Auditor
	Registry    *translate.Registry
	Log         zerolog.Logger

	stt      voice.SpeechToTextProvider
	polish   *engine.Polisher
	google   *translate.GoogleProvider
}

// sttProvider exposes the transcription adapter for commands that
// rebuild engines with adjusted settings.
func (a *App) sttProvider() voice.SpeechToTextProvider { return a.stt }

func (a *App) polisher() *engine.Polisher { return a.polish }

func newApp(cmd *cobra.Command) (*App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if err := config.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("initializing configuration: %w", err)
	}
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	st, err := store.Open(settings.DatabaseFile, logger)
	if err != nil {
		return nil, fmt.Errorf("opening tracking store: %w", err)
	}

	lay := layout.New(settings.OutputDirectory)

	stt := voice.NewElevenLabsProvider(settings.APIKeys.ElevenLabs, logger)

	var providers []translate.Provider
	if settings.APIKeys.DeepL != "" {
		providers = append(providers, translate.NewDeepLProvider(settings.APIKeys.DeepL, logger))
	}
	if settings.APIKeys.Microsoft != "" {
		providers = append(providers, translate.NewMicrosoftProvider(settings.APIKeys.Microsoft, settings.APIKeys.MicrosoftLocation, logger))
	}
	if settings.APIKeys.OpenAI != "" {
		providers = append(providers, translate.NewOpenAIProvider(settings.APIKeys.OpenAI, settings.PolishModel, settings.PolishFallbackModel, logger))
	}
	var google *translate.GoogleProvider
	if settings.APIKeys.GoogleCredentials != "" {
		google, err = translate.NewGoogleProvider(context.Background(), settings.APIKeys.GoogleCredentials, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Google translation provider unavailable")
		} else {
			providers = append(providers, google)
		}
	}
	registry := translate.NewRegistry(settings.DefaultProvider, providers...)

	polisher := engine.NewPolisher(settings.APIKeys.OpenAI, settings.PolishModel, settings.GlossaryFile, logger)

	scanner := discovery.NewScanner(st, lay, settings, logger)
	extractor := engine.NewExtractor(st, lay, settings, logger)
	transcriber := engine.NewTranscriber(st, lay, stt, settings, logger)
	translator := engine.NewTranslator(st, lay, registry, polisher, settings, logger)
	pipe := pipeline.New(st, lay, extractor, transcriber, translator, settings, logger)
	auditor := audit.New(st, lay, logger)

	return &App{
		Settings:    settings,
		Store:       st,
		Layout:      lay,
		Scanner:     scanner,
		Extractor:   extractor,
		Transcriber: transcriber,
		Translator:  translator,
		Pipeline:    pipe,
		Auditor:     auditor,
		Registry:    registry,
		Log:         logger,
		stt:         stt,
		polish:      polisher,
		google:      google,
	}, nil
}

// Close releases the store and any provider clients.
func (a *App) Close() {
	if a.google != nil {
		_ = a.google.Close()
	}
	if err := a.Store.Close(); err != nil {
		a.Log.Warn().Err(err).Msg("closing store")
	}
}

// NewEvaluator builds the quality judge on demand.
func (a *App) NewEvaluator() *quality.Evaluator {
	return quality.NewEvaluator(a.Store, a.Layout, a.Settings.APIKeys.OpenAI, a.Settings.QualityModel, a.Log)
}

// runWithApp wires app construction, signal handling and exit codes
// around a command body. The body's returned exit code wins; an error
// returned together with exitOK is reported as exitRecoverable.
func runWithApp(body func(ctx context.Context, app *App, cmd *cobra.Command, args []string) (int, error)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		app, err := newApp(cmd)
		if err != nil {
			color.Redf("Error: %v\n", err)
			os.Exit(exitFatal)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		code, err := body(ctx, app, cmd, args)
		if err != nil {
			app.Log.Error().Err(err).Msg("command failed")
			color.Redf("Error: %v\n", err)
			if code == exitOK {
				code = exitRecoverable
			}
		}
		stop()
		app.Close()
		os.Exit(code)
	}
}
