package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Embedding   EmbeddingConfig           `json:"embedding"`
	Admin       AdminConfig               `json:"admin"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// EmbeddingConfig selects the embedding model used by the knowledge base.
type EmbeddingConfig struct {
	APIKey     string `json:"api_key"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// AdminConfig carries the single admin credential guarding the CRUD API.
type AdminConfig struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	TokenTTLHours int    `json:"token_ttl_hours"`
}

type BasicConfig struct {
	ServerAddress    string `json:"server_address"`
	LogMode          string `json:"log_mode"`
	ChatProvider     string `json:"chat_provider"`
	TreeConfigPath   string `json:"tree_config_path"`
	KnowledgeDocsDir string `json:"knowledge_docs_dir"`
	UploadBaseDir    string `json:"upload_base_dir"`
	MaxUploadBytes   int64  `json:"max_upload_bytes"`
	RebuildWorkers   int    `json:"rebuild_workers"`
	ChatRateLimit    int    `json:"chat_rate_limit"`
	ChatRateWindow   int    `json:"chat_rate_window_seconds"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A .env file in the working directory is applied first so the config file
// can be kept free of secrets.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("at least one database must be configured")
	}
	if cfg.Admin.Username == "" || cfg.Admin.Password == "" {
		return nil, fmt.Errorf("admin credentials must be configured")
	}

	for name, dbCfg := range cfg.Databases {
		if dbCfg.DSN != "" && !filepath.IsAbs(dbCfg.DSN) && isFileDSN(name) {
			dbCfg.DSN = filepath.Join(filepath.Dir(absPath), dbCfg.DSN)
			cfg.Databases[name] = dbCfg
		}
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORTFOLIO_ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := os.Getenv("PORTFOLIO_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	for name, prov := range cfg.Providers {
		if v := os.Getenv("PORTFOLIO_PROVIDER_" + envKey(name) + "_API_KEY"); v != "" {
			prov.APIKey = v
			cfg.Providers[name] = prov
		}
	}
}

func envKey(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r-'a'+'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func isFileDSN(driver string) bool {
	return driver == "sqlite" || driver == "sqlite3"
}
