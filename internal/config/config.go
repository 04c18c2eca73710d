package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"

	"github.com/semmidev/pgstash/internal/domain"
)

const envPrefix = "PGSTASH"

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Backup   BackupConfig   `mapstructure:"backup"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"dbname"`
	Username string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

type StorageConfig struct {
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	KeyDir         string `mapstructure:"key_dir"`
	PartSizeMB     int64  `mapstructure:"part_size_mb"`
	Concurrency    int    `mapstructure:"concurrency"`
}

type BackupConfig struct {
	OutputDir        string `mapstructure:"output_dir"`
	KeepLocal        bool   `mapstructure:"keep_local"`
	PgDumpPath       string `mapstructure:"pg_dump_path"`
	CompressionLevel int    `mapstructure:"compression_level"`
	Pgzip            bool   `mapstructure:"pgzip"`
	ExtraArgs        string `mapstructure:"extra_args"`
}

// requiredKeys must be present in the file or the environment. An empty
// value counts as present, so `password =` is accepted.
var requiredKeys = []string{
	"database.host",
	"database.port",
	"database.dbname",
	"database.user",
	"database.password",
	"storage.bucket",
	"storage.prefix",
	"storage.region",
}

// legacyKeys maps the flat default-section layout of older config files onto
// the sectioned keys.
var legacyKeys = map[string]string{
	"db_host":            "database.host",
	"db_port":            "database.port",
	"db_name":            "database.dbname",
	"db_user":            "database.user",
	"db_password":        "database.password",
	"s3_endpoint_url":    "storage.endpoint",
	"s3_data_bucket":     "storage.bucket",
	"s3_access_key":      "storage.access_key",
	"s3_secret_key":      "storage.secret_key",
	"s3_region":          "storage.region",
	"backup_file_prefix": "storage.prefix",
	"backup_output_dir":  "backup.output_dir",
}

var knownKeys = []string{
	"app.name", "app.log_level", "app.log_file",
	"database.host", "database.port", "database.dbname", "database.user", "database.password", "database.sslmode",
	"storage.bucket", "storage.prefix", "storage.region", "storage.endpoint", "storage.access_key",
	"storage.secret_key", "storage.force_path_style", "storage.key_dir", "storage.part_size_mb", "storage.concurrency",
	"backup.output_dir", "backup.keep_local", "backup.pg_dump_path", "backup.compression_level", "backup.pgzip",
	"backup.extra_args",
}

// Override is applied after the file and the environment have been read and
// takes precedence over both.
type Override func(v *viper.Viper)

func WithValue(key string, value any) Override {
	return func(v *viper.Viper) {
		v.Set(key, value)
	}
}

func Load(path string, overrides ...Override) (*Config, error) {
	values, err := readINI(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config: %w", domain.ErrConfig, err)
	}

	v := viper.New()

	v.SetDefault("app.name", "pgstash")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("database.sslmode", "prefer")
	v.SetDefault("storage.part_size_mb", 5)
	v.SetDefault("storage.concurrency", 5)
	v.SetDefault("backup.output_dir", os.TempDir())
	v.SetDefault("backup.pg_dump_path", "pg_dump")
	v.SetDefault("backup.compression_level", 6)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range knownKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("%w: failed to bind env for %s: %w", domain.ErrConfig, key, err)
		}
	}

	if err := v.MergeConfigMap(values); err != nil {
		return nil, fmt.Errorf("%w: failed to merge config: %w", domain.ErrConfig, err)
	}

	for _, o := range overrides {
		o(v)
	}

	for _, key := range requiredKeys {
		if !v.IsSet(key) {
			return nil, fmt.Errorf("%w: %s is required", domain.ErrConfig, key)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", domain.ErrConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid config: %w", domain.ErrConfig, err)
	}

	return &cfg, nil
}

// readINI turns the file into the nested map viper expects. Keys of the
// default section are only read through legacyKeys. Values are taken
// verbatim: `#` and `;` only start a comment at the beginning of a line and
// surrounding quotes are kept.
func readINI(path string) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		InsensitiveKeys:         true,
		IgnoreInlineComment:     true,
		PreserveSurroundedQuote: true,
	}, path)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any)
	set := func(dotted, value string) {
		section, key, _ := strings.Cut(dotted, ".")
		m, ok := values[section].(map[string]any)
		if !ok {
			m = make(map[string]any)
			values[section] = m
		}
		m[key] = value
	}

	for _, key := range file.Section(ini.DefaultSection).Keys() {
		if target, ok := legacyKeys[key.Name()]; ok {
			set(target, key.String())
		}
	}

	for _, section := range file.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		name := strings.ToLower(section.Name())
		for _, key := range section.Keys() {
			set(name+"."+key.Name(), key.String())
		}
	}

	return values, nil
}

func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database.host must not be empty")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535, got %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.dbname must not be empty")
	}
	if c.Database.Username == "" {
		return fmt.Errorf("database.user must not be empty")
	}

	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket must not be empty")
	}
	if c.Storage.Prefix == "" {
		return fmt.Errorf("storage.prefix must not be empty")
	}
	if c.Storage.Region == "" {
		return fmt.Errorf("storage.region must not be empty")
	}
	if (c.Storage.AccessKey == "") != (c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key and storage.secret_key must be set together")
	}
	if c.Storage.PartSizeMB < 5 {
		return fmt.Errorf("storage.part_size_mb must be at least 5, got %d", c.Storage.PartSizeMB)
	}
	if c.Storage.Concurrency < 1 {
		return fmt.Errorf("storage.concurrency must be positive, got %d", c.Storage.Concurrency)
	}

	if c.Backup.CompressionLevel < 1 || c.Backup.CompressionLevel > 9 {
		return fmt.Errorf("backup.compression_level must be between 1 and 9, got %d", c.Backup.CompressionLevel)
	}
	if c.Backup.OutputDir == "" {
		return fmt.Errorf("backup.output_dir must not be empty")
	}

	return nil
}

// PgDumpArgs returns the user supplied extra pg_dump flags.
func (c *BackupConfig) PgDumpArgs() []string {
	return strings.Fields(c.ExtraArgs)
}
