package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Settings struct {
	APIKeys struct {
		ElevenLabs        string `json:"elevenLabs" mapstructure:"elevenlabs"`
		DeepL             string `json:"deepL" mapstructure:"deepl"`
		Microsoft         string `json:"microsoft" mapstructure:"microsoft"`
		MicrosoftLocation string `json:"microsoftLocation" mapstructure:"microsoft_location"`
		OpenAI            string `json:"openAI" mapstructure:"openai"`
		GoogleCredentials string `json:"googleCredentials" mapstructure:"google_credentials"`
	} `json:"apiKeys" mapstructure:"api_keys"`

	OutputDirectory string `json:"outputDirectory" mapstructure:"output_directory"`
	DatabaseFile    string `json:"databaseFile" mapstructure:"database_file"`

	MediaExtensions struct {
		Audio []string `json:"audio" mapstructure:"audio"`
		Video []string `json:"video" mapstructure:"video"`
	} `json:"mediaExtensions" mapstructure:"media_extensions"`

	ExtractAudioFormat  string `json:"extractAudioFormat" mapstructure:"extract_audio_format"`
	ExtractAudioQuality string `json:"extractAudioQuality" mapstructure:"extract_audio_quality"`

	MaxAudioSizeMB    int `json:"maxAudioSizeMB" mapstructure:"max_audio_size_mb"`
	MaxSegmentSeconds int `json:"maxSegmentSeconds" mapstructure:"max_segment_seconds"`

	APIRetries          int `json:"apiRetries" mapstructure:"api_retries"`
	SegmentPauseSeconds int `json:"segmentPauseSeconds" mapstructure:"segment_pause_seconds"`
	APITimeoutSeconds   int `json:"apiTimeoutSeconds" mapstructure:"api_timeout_seconds"`

	TranscriptionWorkers int `json:"transcriptionWorkers" mapstructure:"transcription_workers"`
	TranslationWorkers   int `json:"translationWorkers" mapstructure:"translation_workers"`
	BatchSize            int `json:"batchSize" mapstructure:"batch_size"`

	StalledTimeoutMinutes  int `json:"stalledTimeoutMinutes" mapstructure:"stalled_timeout_minutes"`
	CheckIntervalSeconds   int `json:"checkIntervalSeconds" mapstructure:"check_interval_seconds"`
	RestartIntervalSeconds int `json:"restartIntervalSeconds" mapstructure:"restart_interval_seconds"`
	ItemTimeoutMinutes     int `json:"itemTimeoutMinutes" mapstructure:"item_timeout_minutes"`

	ForceReprocess     bool   `json:"forceReprocess" mapstructure:"force_reprocess"`
	ForceLanguage      string `json:"forceLanguage" mapstructure:"force_language"`
	AutoDetectLanguage bool   `json:"autoDetectLanguage" mapstructure:"auto_detect_language"`
	DefaultLanguage    string `json:"defaultLanguage" mapstructure:"default_language"`

	TargetLanguages []string `json:"targetLanguages" mapstructure:"target_languages"`
	DefaultProvider string   `json:"defaultProvider" mapstructure:"default_provider"`

	TranscriptionModel string `json:"transcriptionModel" mapstructure:"transcription_model"`
	Diarize            bool   `json:"diarize" mapstructure:"diarize"`

	PolishModel         string `json:"polishModel" mapstructure:"polish_model"`
	PolishFallbackModel string `json:"polishFallbackModel" mapstructure:"polish_fallback_model"`
	GlossaryFile        string `json:"glossaryFile" mapstructure:"glossary_file"`

	QualityModel string `json:"qualityModel" mapstructure:"quality_model"`
}

func getConfigPath() (string, error) {
	configDir := filepath.Join(xdg.ConfigHome, "scribe")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

func InitConfig(customPath string) error {
	// A .env in the working directory can stand in for exported provider
	// keys; a missing file is fine.
	_ = godotenv.Load()

	if customPath != "" {
		viper.SetConfigFile(customPath)
	} else {
		configPath, err := getConfigPath()
		if err != nil {
			return err
		}
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
	}

	viper.SetDefault("api_keys.elevenlabs", "")
	viper.SetDefault("api_keys.deepl", "")
	viper.SetDefault("api_keys.microsoft", "")
	viper.SetDefault("api_keys.microsoft_location", "global")
	viper.SetDefault("api_keys.openai", "")
	viper.SetDefault("api_keys.google_credentials", "")

	viper.SetDefault("output_directory", "./output")
	viper.SetDefault("database_file", "./media_tracking.db")

	viper.SetDefault("media_extensions.audio", []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".opus"})
	viper.SetDefault("media_extensions.video", []string{".mp4", ".mkv", ".mov", ".avi", ".webm", ".mts"})

	viper.SetDefault("extract_audio_format", "mp3")
	viper.SetDefault("extract_audio_quality", "192k")

	viper.SetDefault("max_audio_size_mb", 25)
	viper.SetDefault("max_segment_seconds", 600)

	viper.SetDefault("api_retries", 8)
	viper.SetDefault("segment_pause_seconds", 1)
	viper.SetDefault("api_timeout_seconds", 300)

	viper.SetDefault("transcription_workers", 5)
	viper.SetDefault("translation_workers", 5)
	viper.SetDefault("batch_size", 20)

	viper.SetDefault("stalled_timeout_minutes", 30)
	viper.SetDefault("check_interval_seconds", 600)
	viper.SetDefault("restart_interval_seconds", 600)
	viper.SetDefault("item_timeout_minutes", 30)

	viper.SetDefault("force_reprocess", false)
	viper.SetDefault("force_language", "")
	viper.SetDefault("auto_detect_language", true)
	viper.SetDefault("default_language", "deu")

	viper.SetDefault("target_languages", []string{"en", "de", "he"})
	viper.SetDefault("default_provider", "deepl")

	viper.SetDefault("transcription_model", "scribe_v1")
	viper.SetDefault("diarize", true)

	viper.SetDefault("polish_model", "gpt-4.1")
	viper.SetDefault("polish_fallback_model", "gpt-4.1-mini")
	viper.SetDefault("glossary_file", "")

	viper.SetDefault("quality_model", "gpt-4.1")

	bindEnvKeys()

	// Create the config file on first run
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := viper.SafeWriteConfig(); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	return nil
}

func bindEnvKeys() {
	viper.SetEnvPrefix("SCRIBE")
	viper.AutomaticEnv()

	envBindings := map[string]string{
		"ELEVENLABS_API_KEY":             "api_keys.elevenlabs",
		"DEEPL_API_KEY":                  "api_keys.deepl",
		"MS_TRANSLATOR_KEY":              "api_keys.microsoft",
		"MS_TRANSLATOR_LOCATION":         "api_keys.microsoft_location",
		"OPENAI_API_KEY":                 "api_keys.openai",
		"GOOGLE_APPLICATION_CREDENTIALS": "api_keys.google_credentials",
	}
	for env, conf := range envBindings {
		_ = viper.BindEnv(conf, env)
	}
}

func LoadSettings() (Settings, error) {
	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func SaveSettings(settings Settings) error {
	viper.Set("output_directory", settings.OutputDirectory)
	viper.Set("database_file", settings.DatabaseFile)
	viper.Set("extract_audio_format", settings.ExtractAudioFormat)
	viper.Set("extract_audio_quality", settings.ExtractAudioQuality)
	viper.Set("max_audio_size_mb", settings.MaxAudioSizeMB)
	viper.Set("max_segment_seconds", settings.MaxSegmentSeconds)
	viper.Set("api_retries", settings.APIRetries)
	viper.Set("target_languages", settings.TargetLanguages)
	viper.Set("default_provider", settings.DefaultProvider)

	configPath, err := getConfigPath()
	if err != nil {
		return err
	}
	viper.SetConfigFile(configPath)
	return viper.WriteConfig()
}
