package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	configFileENV         = "CONFIG_FILE"
	defaultConfigFilePath = "/config/marginalia.yaml"
)

// Config is built once at startup and handed to every component that needs
// it. Each field maps to a snake_case key in the YAML file and to the upper
// snake_case environment variable of the same name.
type Config struct {
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count" default:"5"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay" default:"2s"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries" default:"5"`
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout" default:"5s"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path" required:"true"`

	Environment        string   `koanf:"environment" default:"production"`
	ServerHost         string   `koanf:"server_host" default:"0.0.0.0"`
	ServerPort         int      `koanf:"server_port" default:"3689"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	JWTSecret       string        `koanf:"jwt_secret" required:"true"`
	SessionDuration time.Duration `koanf:"session_duration" default:"168h"`
	OTPLength       int           `koanf:"otp_length" default:"6"`
	OTPTTL          time.Duration `koanf:"otp_ttl" default:"10m"`
	OTPMaxAttempts  int           `koanf:"otp_max_attempts" default:"5"`

	// Signup, verify, and login requests per second allowed from one client
	// IP, with AuthRateBurst requests allowed at once. Zero disables the
	// limit.
	AuthRateLimit float64 `koanf:"auth_rate_limit" default:"0.2"`
	AuthRateBurst int     `koanf:"auth_rate_burst" default:"10"`

	BlobChunkSize int   `koanf:"blob_chunk_size" default:"261120"`
	MaxUploadSize int64 `koanf:"max_upload_size" default:"209715200"`

	CleanupInterval time.Duration `koanf:"cleanup_interval" default:"15m"`
}

// New loads the configuration from defaults, the optional YAML config file,
// and the environment, in increasing order of precedence.
func New() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(".")

	path := os.Getenv(configFileENV)
	if path == "" {
		path = defaultConfigFilePath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", path)
		}
	}

	keys := knownKeys()
	// Empty variables are treated as unset so they can't mask the file.
	err := k.Load(env.ProviderWithValue("", ".", func(name, value string) (string, interface{}) {
		key := strings.ToLower(name)
		if _, ok := keys[key]; !ok || value == "" {
			return "", nil
		}
		return key, value
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := checkRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a configuration backed by an in-memory database.
func NewForTest() *Config {
	cfg := &Config{}
	_ = defaults.Set(cfg)
	cfg.DatabaseFilePath = ":memory:"
	cfg.Environment = "test"
	cfg.ServerHost = "127.0.0.1"
	cfg.JWTSecret = "test-secret-key"
	cfg.BlobChunkSize = 16
	return cfg
}

// IsTest reports whether test-only routes should be exposed.
func (cfg *Config) IsTest() bool {
	return cfg.Environment == "test"
}

func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		keys[t.Field(i).Tag.Get("koanf")] = struct{}{}
	}
	return keys
}

func checkRequired(cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	missing := []string{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get("required") != "true" {
			continue
		}
		if v.Field(i).IsZero() {
			key := toSnakeCase(f.Name)
			missing = append(missing, fmt.Sprintf("%s (env) or %s (config file)", strings.ToUpper(key), key))
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
