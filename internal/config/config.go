package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		Host         string        `yaml:"host"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Worker struct {
		CycleInterval    time.Duration `yaml:"cycle_interval"`
		BatchSize        int           `yaml:"batch_size"`
		MaxAttempts      int           `yaml:"max_attempts"`
		BackoffBase      time.Duration `yaml:"backoff_base"`
		BackoffMax       time.Duration `yaml:"backoff_max"`
		StuckThreshold   time.Duration `yaml:"stuck_threshold"`
		RetentionWindow  time.Duration `yaml:"retention_window"`
		PurgeInterval    time.Duration `yaml:"purge_interval"`
		LLMBudget        int           `yaml:"llm_budget"`
		EnrichmentBudget int           `yaml:"enrichment_budget"`
		StoreBudget      int           `yaml:"store_budget"`
		CycleLockTTL     time.Duration `yaml:"cycle_lock_ttl"`
	} `yaml:"worker"`

	Heuristic struct {
		MinLength int     `yaml:"min_length"`
		MaxLength int     `yaml:"max_length"`
		Threshold float64 `yaml:"threshold"`
	} `yaml:"heuristic"`

	Extraction struct {
		Strategy string        `yaml:"strategy"` // composed or unified
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"extraction"`

	LLM struct {
		Provider        string        `yaml:"provider"`
		APIKey          string        `yaml:"api_key"`
		Model           string        `yaml:"model"`
		MaxTokens       int           `yaml:"max_tokens"`
		Temperature     float32       `yaml:"temperature"`
		Timeout         time.Duration `yaml:"timeout"`
		RateLimit       int           `yaml:"rate_limit"` // requests per minute
		CostPerCallCent int           `yaml:"cost_per_call_cent"`
	} `yaml:"llm"`

	Normalizer struct {
		FuzzyThreshold    float64       `yaml:"fuzzy_threshold"`
		CreatedThreshold  float64       `yaml:"created_threshold"`
		EnrichmentEnabled bool          `yaml:"enrichment_enabled"`
		DirectoryBaseURL  string        `yaml:"directory_base_url"`
		PlacesBaseURL     string        `yaml:"places_base_url"`
		PlacesAPIKey      string        `yaml:"places_api_key"`
		EnrichmentTimeout time.Duration `yaml:"enrichment_timeout"`
		EnrichmentRateLmt int           `yaml:"enrichment_rate_limit"` // requests per minute
	} `yaml:"normalizer"`

	Dedup struct {
		Window time.Duration `yaml:"window"`
	} `yaml:"dedup"`

	Decision struct {
		ImportThreshold float64 `yaml:"import_threshold"`
		ReviewThreshold float64 `yaml:"review_threshold"`
		FarFutureDays   int     `yaml:"far_future_days"`
		Weights         struct {
			Hospital   float64 `yaml:"hospital"`
			DatePeriod float64 `yaml:"date_period"`
			Value      float64 `yaml:"value"`
			Contact    float64 `yaml:"contact"`
			Specialty  float64 `yaml:"specialty"`
		} `yaml:"weights"`
		UnresolvedValueConfidence float64 `yaml:"unresolved_value_confidence"`
	} `yaml:"decision"`

	Database struct {
		URL            string        `yaml:"url"`
		MaxConns       int           `yaml:"max_conns"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
	} `yaml:"database"`

	Redis struct {
		URL      string        `yaml:"url"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"redis"`

	Metrics struct {
		Sink       string        `yaml:"sink"` // log or http
		Endpoint   string        `yaml:"endpoint"`
		Timeout    time.Duration `yaml:"timeout"`
		MaxRetries int           `yaml:"max_retries"`
	} `yaml:"metrics"`

	Dictionary struct {
		Path string `yaml:"path"`
	} `yaml:"dictionary"`

	Logging struct {
		Level    string `yaml:"level"`
		Format   string `yaml:"format"`
		Adapters []struct {
			Name    string                 `yaml:"name"`
			Type    string                 `yaml:"type"`
			Enabled bool                   `yaml:"enabled"`
			Options map[string]interface{} `yaml:"options"`
		} `yaml:"adapters"`
	} `yaml:"logging"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := &Config{}
	config.setDefaults()

	// Load from YAML file if it exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			yamlContent := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(yamlContent), config); err != nil {
				return nil, err
			}
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	return config, nil
}

func (c *Config) setDefaults() {
	c.Server.Port = 8080
	c.Server.Host = "0.0.0.0"
	c.Server.ReadTimeout = 30 * time.Second
	c.Server.WriteTimeout = 30 * time.Second

	c.Worker.CycleInterval = 1 * time.Minute
	c.Worker.BatchSize = 50
	c.Worker.MaxAttempts = 5
	c.Worker.BackoffBase = 30 * time.Second
	c.Worker.BackoffMax = 30 * time.Minute
	c.Worker.StuckThreshold = 1 * time.Hour
	c.Worker.RetentionWindow = 30 * 24 * time.Hour
	c.Worker.PurgeInterval = 6 * time.Hour
	c.Worker.LLMBudget = 4
	c.Worker.EnrichmentBudget = 4
	c.Worker.StoreBudget = 16
	c.Worker.CycleLockTTL = 10 * time.Minute

	c.Heuristic.MinLength = 12
	c.Heuristic.MaxLength = 4000
	c.Heuristic.Threshold = 0.25

	c.Extraction.Strategy = "composed"
	c.Extraction.CacheTTL = 24 * time.Hour

	c.LLM.Provider = "claude"
	c.LLM.Model = "claude-3-haiku-20240307"
	c.LLM.MaxTokens = 4096
	c.LLM.Temperature = 0.1
	c.LLM.Timeout = 60 * time.Second
	c.LLM.RateLimit = 60
	c.LLM.CostPerCallCent = 2

	c.Normalizer.FuzzyThreshold = 0.45
	c.Normalizer.CreatedThreshold = 0.80
	c.Normalizer.EnrichmentEnabled = true
	c.Normalizer.EnrichmentTimeout = 15 * time.Second
	c.Normalizer.EnrichmentRateLmt = 30

	c.Dedup.Window = 48 * time.Hour

	c.Decision.ImportThreshold = 0.90
	c.Decision.ReviewThreshold = 0.70
	c.Decision.FarFutureDays = 90
	c.Decision.Weights.Hospital = 0.30
	c.Decision.Weights.DatePeriod = 0.30
	c.Decision.Weights.Value = 0.20
	c.Decision.Weights.Contact = 0.10
	c.Decision.Weights.Specialty = 0.10
	c.Decision.UnresolvedValueConfidence = 0.50

	c.Database.MaxConns = 10
	c.Database.ConnectTimeout = 10 * time.Second

	c.Redis.URL = "redis://localhost:6379"
	c.Redis.DB = 0
	c.Redis.Timeout = 5 * time.Second

	c.Metrics.Sink = "log"
	c.Metrics.Timeout = 10 * time.Second
	c.Metrics.MaxRetries = 3

	c.Dictionary.Path = "configs/keywords.yaml"

	c.Logging.Level = "info"
	c.Logging.Format = "json"
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		c.LLM.APIKey = apiKey
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}

	if model := os.Getenv("LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}

	if strategy := os.Getenv("EXTRACTION_STRATEGY"); strategy != "" {
		c.Extraction.Strategy = strategy
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		c.Database.URL = dbURL
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	if placesKey := os.Getenv("PLACES_API_KEY"); placesKey != "" {
		c.Normalizer.PlacesAPIKey = placesKey
	}

	if dictPath := os.Getenv("DICTIONARY_PATH"); dictPath != "" {
		c.Dictionary.Path = dictPath
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	if metricsEndpoint := os.Getenv("METRICS_ENDPOINT"); metricsEndpoint != "" {
		c.Metrics.Endpoint = metricsEndpoint
		c.Metrics.Sink = "http"
	}
}
