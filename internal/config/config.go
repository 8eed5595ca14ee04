// Package config resolves settings from config/config.yml with environment
// overrides. Environment variables always win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/LeventeLantos/sms-campaign/internal/model"
)

const DefaultPath = "config/config.yml"

type Config struct {
	Paths     PathsConfig
	Twilio    TwilioConfig
	SMS       SMSConfig
	Columns   ColumnsConfig
	LogLevel  string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Events    EventsConfig
	Archive   ArchiveConfig
}

type PathsConfig struct {
	DataFolder       string
	ConfigFolder     string
	LogsFolder       string
	ArchiveFolder    string
	DeleteTempFolder string

	CustomersOld string
	CustomersNew string
	Campaigns    string
}

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	APIKey      string
	APISecret   string
	PhoneNumber string
}

type SMSConfig struct {
	DryRun         bool
	RateLimitDelay time.Duration
	OptOutLookback time.Duration

	// TestPhoneNumbers restricts every campaign to these numbers when
	// non-empty.
	TestPhoneNumbers []string
}

type ColumnsConfig struct {
	Customer model.CustomerColumns
	Campaign model.CampaignColumns
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type SchedulerConfig struct {
	Interval time.Duration
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

type ArchiveConfig struct {
	S3Bucket string
	S3Prefix string
	Region   string
}

// Load reads the YAML file at path (a missing file is fine) and applies the
// environment on top. All problems are reported together.
func Load(path string) (*Config, error) {
	v, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var errs []error
	intVar := func(key string, def int) int {
		n, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	floatVar := func(key string, def float64) float64 {
		f, err := getEnvFloat(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return f
	}
	boolVar := func(key string, def bool) bool {
		b, err := getEnvBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return b
	}

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", v.GetString("logging.level")),
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: os.Getenv("POSTGRES_URL"),
		},
		Twilio: TwilioConfig{
			AccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
			APIKey:      getEnv("TWILIO_API_KEY", ""),
			APISecret:   getEnv("TWILIO_API_SECRET", ""),
			PhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
		},
		Events: EventsConfig{
			AMQPURL:  os.Getenv("AMQP_URL"),
			Exchange: getEnv("AMQP_EXCHANGE", "sms.campaigns"),
		},
		Archive: ArchiveConfig{
			S3Bucket: os.Getenv("ARCHIVE_S3_BUCKET"),
			S3Prefix: getEnv("ARCHIVE_S3_PREFIX", "archive"),
			Region:   os.Getenv("AWS_REGION"),
		},
	}

	cfg.Paths = PathsConfig{
		DataFolder:       getEnv("DATA_FOLDER", v.GetString("paths.data_folder")),
		ConfigFolder:     getEnv("CONFIG_FOLDER", v.GetString("paths.config_folder")),
		LogsFolder:       getEnv("LOGS_FOLDER", v.GetString("paths.logs_folder")),
		ArchiveFolder:    getEnv("ARCHIVE_FOLDER", v.GetString("paths.archive_folder")),
		DeleteTempFolder: getEnv("DELETE_TEMP_FOLDER", v.GetString("paths.delete_temp_folder")),
		CustomersOld:     getEnv("CUSTOMERS_LIST_OLD", v.GetString("files.customers_list_old")),
		CustomersNew:     getEnv("CUSTOMERS_LIST_NEW", v.GetString("files.customers_list_new")),
		Campaigns:        getEnv("CAMPAIGN_CONFIG", v.GetString("files.campaign_config")),
	}

	delay := floatVar("SMS_RATE_LIMIT_DELAY", v.GetFloat64("sms.rate_limit_delay"))
	cfg.SMS = SMSConfig{
		DryRun:           boolVar("DRY_RUN", v.GetBool("sms.dry_run")),
		RateLimitDelay:   time.Duration(delay * float64(time.Second)),
		OptOutLookback:   time.Duration(intVar("OPT_OUT_LOOKBACK_DAYS", v.GetInt("sms.opt_out_lookback_days"))) * 24 * time.Hour,
		TestPhoneNumbers: testNumbers(v),
	}

	cfg.Scheduler.Interval = time.Duration(intVar("SCHED_INTERVAL_SECONDS", 86400)) * time.Second

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis = RedisConfig{
			Enabled:  true,
			Address:  addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       intVar("REDIS_DB", 0),
			TTL:      time.Duration(intVar("REDIS_TTL_SECONDS", 86400)) * time.Second,
		}
	}

	cfg.Columns.Customer = model.CustomerColumnsFrom(v.GetStringMapString("customer_columns"))
	if col := getEnv("PHONE_NUMBER_COLUMN", v.GetString("phone.column_name")); col != "" {
		cfg.Columns.Customer.Phone = col
	}
	cfg.Columns.Campaign = model.CampaignColumnsFrom(v.GetStringMapString("campaign_columns"))

	errs = append(errs, validate(cfg)...)
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("logging.level", "info")
	v.SetDefault("paths.data_folder", "data")
	v.SetDefault("paths.config_folder", "config")
	v.SetDefault("paths.logs_folder", "logs")
	v.SetDefault("paths.archive_folder", "data/archive")
	v.SetDefault("paths.delete_temp_folder", "data/delete_temp")
	v.SetDefault("files.customers_list_old", "customers_list_old.xlsx")
	v.SetDefault("files.customers_list_new", "customers_list_new.xlsx")
	v.SetDefault("files.campaign_config", "campaigns.xlsx")
	v.SetDefault("sms.dry_run", false)
	v.SetDefault("sms.rate_limit_delay", 1.0)
	v.SetDefault("sms.opt_out_lookback_days", 30)

	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, nil
}

// testNumbers prefers TEST_PHONE_NUMBERS whenever it is set, even to an empty
// value, over the test_mode.phone_numbers list in the file.
func testNumbers(v *viper.Viper) []string {
	if raw, ok := os.LookupEnv("TEST_PHONE_NUMBERS"); ok {
		return splitList(raw)
	}
	var out []string
	for _, n := range v.GetStringSlice("test_mode.phone_numbers") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validate(cfg *Config) []error {
	var errs []error
	if !cfg.SMS.DryRun {
		if _, err := requireEnv("TWILIO_ACCOUNT_SID"); err != nil {
			errs = append(errs, err)
		}
		hasKey := cfg.Twilio.APIKey != "" && cfg.Twilio.APISecret != ""
		if cfg.Twilio.AuthToken == "" && !hasKey {
			errs = append(errs, errors.New("TWILIO_AUTH_TOKEN (or TWILIO_API_KEY and TWILIO_API_SECRET) is not set"))
		}
		if _, err := requireEnv("TWILIO_PHONE_NUMBER"); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.SMS.RateLimitDelay < 0 {
		errs = append(errs, errors.New("SMS_RATE_LIMIT_DELAY must be >= 0"))
	}
	if cfg.SMS.OptOutLookback <= 0 {
		errs = append(errs, errors.New("OPT_OUT_LOOKBACK_DAYS must be > 0"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL_SECONDS must be > 0"))
	}
	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}
	return errs
}

func (c *Config) CustomersOldPath() string {
	return filepath.Join(c.Paths.DataFolder, c.Paths.CustomersOld)
}

func (c *Config) CustomersNewPath() string {
	return filepath.Join(c.Paths.DataFolder, c.Paths.CustomersNew)
}

func (c *Config) CampaignsPath() string {
	return filepath.Join(c.Paths.DataFolder, c.Paths.Campaigns)
}

// EnsureDirectories creates every working folder.
func (c *Config) EnsureDirectories() error {
	var errs []error
	for _, dir := range []string{
		c.Paths.DataFolder,
		c.Paths.ConfigFolder,
		c.Paths.LogsFolder,
		c.Paths.ArchiveFolder,
		c.Paths.DeleteTempFolder,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", dir, err))
		}
	}
	return joinErrors(errs)
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("invalid number for env %s: %s", key, v)
	}
	return f, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid bool for env %s: %s", key, v)
	}
	return b, nil
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
