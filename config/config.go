package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Action orderings accepted in recycler.action_order.
const (
	OrderDispatchThenRelease = "dispatch_then_release"
	OrderReleaseOnly         = "release_only"
)

type Config struct {
	mu sync.RWMutex `yaml:"-"`

	Recycler  RecyclerConfig  `yaml:"recycler"`
	Log       LogConfig       `yaml:"log"`
	LocoNet   LocoNetConfig   `yaml:"loconet"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
}

type RecyclerConfig struct {
	PollInterval           time.Duration `yaml:"poll_interval"`
	InitialDelay           time.Duration `yaml:"initial_delay"`
	IdleTimeout            time.Duration `yaml:"idle_timeout"`
	ConsistIdleTimeout     time.Duration `yaml:"consist_idle_timeout"`
	ActionOrder            string        `yaml:"action_order"`
	IncludeConsists        bool          `yaml:"include_consists"`
	IncludeHandheld        bool          `yaml:"include_handheld_throttles"`
	AllowedThrottleIDs     []int         `yaml:"allowed_throttle_ids"`
	DryRun                 bool          `yaml:"dry_run"`
	SkipSystemSlots        bool          `yaml:"skip_system_slots"`
	ProtectedAddressesFile string        `yaml:"protected_addresses_file"`
}

type LogConfig struct {
	Console bool   `yaml:"console"`
	File    string `yaml:"file"`
}

type LocoNetConfig struct {
	Transport string            `yaml:"transport"` // "http" or "mqtt"
	HTTP      LocoNetHTTPConfig `yaml:"http"`
	MQTT      LocoNetMQTTConfig `yaml:"mqtt"`
}

type LocoNetHTTPConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type LocoNetMQTTConfig struct {
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

type MessagingConfig struct {
	Kafka               KafkaConfig   `yaml:"kafka"`
	EventsTopic         string        `yaml:"events_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	StationID           string        `yaml:"station_id"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

func Defaults() *Config {
	return &Config{
		Recycler: RecyclerConfig{
			PollInterval:           60 * time.Second,
			InitialDelay:           2 * time.Second,
			IdleTimeout:            300 * time.Second,
			ConsistIdleTimeout:     300 * time.Second,
			ActionOrder:            OrderDispatchThenRelease,
			IncludeConsists:        true,
			IncludeHandheld:        true,
			DryRun:                 false,
			SkipSystemSlots:        true,
			ProtectedAddressesFile: "protected_addresses.txt",
		},
		Log: LogConfig{
			Console: true,
			File:    "slotrecycler.log",
		},
		LocoNet: LocoNetConfig{
			Transport: "http",
			HTTP: LocoNetHTTPConfig{
				BaseURL: "http://127.0.0.1:12090",
				Timeout: 5 * time.Second,
			},
			MQTT: LocoNetMQTTConfig{
				Broker:      "localhost",
				Port:        1883,
				ClientID:    "slotrecycler",
				TopicPrefix: "loconet",
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "slotrecycler.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "slotrecycler",
				User:     "slotrecycler",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8084,
			SessionSecret: "change-me-in-production",
		},
		Messaging: MessagingConfig{
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "slotrecycler",
			},
			EventsTopic:         "slotrecycler.events",
			OutboxDrainInterval: 5 * time.Second,
			StationID:           "slotrecycler",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the recycler cannot run without.
func (c *Config) Validate() error {
	r := &c.Recycler
	if r.PollInterval <= 0 {
		return fmt.Errorf("recycler.poll_interval must be > 0")
	}
	if r.IdleTimeout <= 0 {
		return fmt.Errorf("recycler.idle_timeout must be > 0")
	}
	if r.ConsistIdleTimeout <= 0 {
		return fmt.Errorf("recycler.consist_idle_timeout must be > 0")
	}
	if r.InitialDelay < 0 {
		return fmt.Errorf("recycler.initial_delay must be >= 0")
	}
	switch r.ActionOrder {
	case OrderDispatchThenRelease, OrderReleaseOnly:
	default:
		return fmt.Errorf("recycler.action_order: unknown ordering %q", r.ActionOrder)
	}
	switch c.LocoNet.Transport {
	case "http", "mqtt":
	default:
		return fmt.Errorf("loconet.transport: unknown transport %q", c.LocoNet.Transport)
	}
	return nil
}

func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Lock()   { c.mu.Lock() }
func (c *Config) Unlock() { c.mu.Unlock() }
