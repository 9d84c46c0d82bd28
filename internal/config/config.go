package config

import (
	"strings"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Providers ProvidersConfig
	OpenAI    OpenAIConfig
	Translate TranslateConfig
	Reply     ReplyConfig
	Dataset   DatasetConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type ProvidersConfig struct {
	PrimaryURL   string
	SecondaryURL string
	Timeout      string // Go duration, e.g. "30s"
}

type OpenAIConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

type TranslateConfig struct {
	BaseURL string
	APIKey  string
}

type ReplyConfig struct {
	Personality      string
	ModelPreference  string
	MaxContextTokens int
}

type DatasetConfig struct {
	Paths string // comma-separated files or directories
}

type LogConfig struct {
	Level string
}

// keychainService is the service name secrets are stored under.
const keychainService = "solace"

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Providers: ProvidersConfig{
			PrimaryURL:   "https://obx0x3-conversation-response.hf.space/generate",
			SecondaryURL: "https://obx0x3-empathy-api.hf.space/generate",
			Timeout:      "30s",
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4",
		},
		Translate: TranslateConfig{
			BaseURL: "https://libretranslate.de",
		},
		Reply: ReplyConfig{
			Personality:      "supportive and compassionate",
			ModelPreference:  "primary",
			MaxContextTokens: 4000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DatasetPaths splits the dataset.paths value into trimmed entries.
func (c Config) DatasetPaths() []string {
	var out []string
	for _, p := range strings.Split(c.Dataset.Paths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.solace.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/solace/config.json
// and secrets fall back to $XDG_DATA_HOME/solace/secrets.json.
//
// Environment variables (SOLACE_*) override backend values on all platforms.
// No key is required: without an OpenAI key the general-purpose model is
// skipped in the provider chain.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
