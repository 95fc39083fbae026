package models

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // time_zone must resolve on hosts without zoneinfo

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type ServiceConfig struct {
	LunchStartHour     int    `mapstructure:"lunch_start_hour"`
	DinnerStartHour    int    `mapstructure:"dinner_start_hour"`
	EarlyMorningPolicy string `mapstructure:"early_morning_policy"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`
	Path   string `mapstructure:"path"`
}

type CloudStorageConfig struct {
	Provider   string `mapstructure:"provider"`
	Region     string `mapstructure:"region"`
	BucketName string `mapstructure:"bucket_name"`
}

type OutputConfig struct {
	Destination  string             `mapstructure:"destination"` // console, csv, json, parquet, kafka
	Path         string             `mapstructure:"path"`
	Folder       string             `mapstructure:"folder"`
	CloudStorage CloudStorageConfig `mapstructure:"cloud_storage"`
}

type KafkaConfig struct {
	BrokerList string        `mapstructure:"broker_list"`
	Topic      string        `mapstructure:"topic"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// Tombstones sends a nil value for every row key a report no longer has.
	Tombstones bool `mapstructure:"tombstones"`
}

type POSConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryMax     int           `mapstructure:"retry_max"`
	PageSize     int           `mapstructure:"page_size"`
	// CategoryMappingPath, when set, replaces the code table of the rules
	// with the {"category": [codes]} document served at this path.
	CategoryMappingPath string `mapstructure:"category_mapping_path"`
	// restaurant GUID -> location name
	Locations map[string]string `mapstructure:"locations"`
}

type Config struct {
	IntervalMinutes int           `mapstructure:"interval_minutes"`
	Service         ServiceConfig `mapstructure:"service"`
	RulesFile       string        `mapstructure:"rules_file"`
	Store           StoreConfig   `mapstructure:"store"`
	Output          OutputConfig  `mapstructure:"output"`
	Kafka           KafkaConfig   `mapstructure:"kafka"`
	POS             POSConfig     `mapstructure:"pos"`
	Concurrency     int           `mapstructure:"concurrency"`
	AuditExamples   int           `mapstructure:"audit_examples"`
	// TimeZone is the IANA zone order timestamps are bucketed in.
	TimeZone string `mapstructure:"time_zone"`
}

// SetDefaults registers every default on v so that a missing config file
// still produces a usable Config.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("interval_minutes", 60)
	v.SetDefault("service.lunch_start_hour", 6)
	v.SetDefault("service.dinner_start_hour", 16)
	v.SetDefault("service.early_morning_policy", EarlyMorningSameDayDinner)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "salescount.sqlite")
	v.SetDefault("output.destination", "console")
	v.SetDefault("output.path", ".")
	v.SetDefault("output.folder", "reports")
	v.SetDefault("kafka.broker_list", "localhost:9092")
	v.SetDefault("kafka.topic", "report_rows")
	v.SetDefault("kafka.timeout", "30s")
	v.SetDefault("kafka.tombstones", true)
	v.SetDefault("pos.base_url", "https://ws-api.toasttab.com")
	v.SetDefault("pos.timeout", "30s")
	v.SetDefault("pos.retry_max", 4)
	v.SetDefault("pos.page_size", 100)
	v.SetDefault("concurrency", 4)
	v.SetDefault("audit_examples", 10)
	v.SetDefault("time_zone", "UTC")
}

// LoadConfig reads the configuration using Viper. An empty cfgFile means the
// caller already pointed v at its search paths.
func LoadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}

	v.SetEnvPrefix("salescount")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	decoderConfigOption := viper.DecoderConfigOption(func(config *mapstructure.DecoderConfig) {
		config.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			config.DecodeHook,
			mapstructure.StringToTimeDurationHookFunc(),
		)
	})
	if err := v.Unmarshal(&config, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.IntervalMinutes != 30 && c.IntervalMinutes != 60 {
		return fmt.Errorf("interval_minutes must be 30 or 60, got %d", c.IntervalMinutes)
	}
	switch c.Service.EarlyMorningPolicy {
	case EarlyMorningSameDayDinner, EarlyMorningPriorDayDinner, EarlyMorningOvernight:
	default:
		return fmt.Errorf("unknown service.early_morning_policy %q", c.Service.EarlyMorningPolicy)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	return nil
}

// Location resolves TimeZone, treating an empty value as UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("unknown time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
