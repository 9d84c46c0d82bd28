package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	account string // secret store account for secret keys
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SOLACE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SOLACE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "providers.primary_url", typ: kString, env: "SOLACE_PROVIDERS_PRIMARY_URL",
		apply:   func(cfg *Config, v any) { cfg.Providers.PrimaryURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.PrimaryURL },
	},
	{
		key: "providers.secondary_url", typ: kString, env: "SOLACE_PROVIDERS_SECONDARY_URL",
		apply:   func(cfg *Config, v any) { cfg.Providers.SecondaryURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.SecondaryURL },
	},
	{
		key: "providers.timeout", typ: kString, env: "SOLACE_PROVIDERS_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Providers.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Providers.Timeout },
	},
	{
		key: "openai.base_url", typ: kString, env: "SOLACE_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.model", typ: kString, env: "SOLACE_OPENAI_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.Model },
	},
	{
		key: "openai.api_key", typ: kString, env: "SOLACE_OPENAI_API_KEY",
		secret: true, account: "openai_api_key",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "translate.base_url", typ: kString, env: "SOLACE_TRANSLATE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Translate.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Translate.BaseURL },
	},
	{
		key: "translate.api_key", typ: kString, env: "SOLACE_TRANSLATE_API_KEY",
		secret: true, account: "translate_api_key",
		apply:   func(cfg *Config, v any) { cfg.Translate.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Translate.APIKey },
	},
	{
		key: "reply.personality", typ: kString, env: "SOLACE_REPLY_PERSONALITY",
		apply:   func(cfg *Config, v any) { cfg.Reply.Personality = v.(string) },
		extract: func(cfg Config) any { return cfg.Reply.Personality },
	},
	{
		key: "reply.model_preference", typ: kString, env: "SOLACE_REPLY_MODEL_PREFERENCE",
		apply:   func(cfg *Config, v any) { cfg.Reply.ModelPreference = v.(string) },
		extract: func(cfg Config) any { return cfg.Reply.ModelPreference },
	},
	{
		key: "reply.max_context_tokens", typ: kInt, env: "SOLACE_REPLY_MAX_CONTEXT_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Reply.MaxContextTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Reply.MaxContextTokens },
	},
	{
		key: "dataset.paths", typ: kString, env: "SOLACE_DATASET_PATHS",
		apply:   func(cfg *Config, v any) { cfg.Dataset.Paths = v.(string) },
		extract: func(cfg Config) any { return cfg.Dataset.Paths },
	},
	{
		key: "log.level", typ: kString, env: "SOLACE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

// applySecrets fills secret keys left empty by the environment from the
// platform secret store.
func applySecrets(cfg *Config, kc keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.account); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}
