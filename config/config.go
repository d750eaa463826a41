package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "MARKETSHIP"

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	MarketShip MarketShipConfig `mapstructure:"marketship"`
	Carriers   CarriersConfig   `mapstructure:"carriers"`
	Senders    SendersConfig    `mapstructure:"senders"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ConnString builds a pgx connection string, defaulting sslmode to "disable".
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	NotificationRequestedTopicName string `mapstructure:"notification_requested_topic_name"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type LogConfig struct {
	Environment string `mapstructure:"environment"`
	Level       string `mapstructure:"level"`
}

type MarketShipConfig struct {
	HTTPAddr               string `mapstructure:"http_addr"`
	KafkaConsumerGroup     string `mapstructure:"kafka_consumer_group"`
	LiveTrackingTTLSeconds int    `mapstructure:"live_tracking_ttl_seconds"`

	// "direct" creates notifications in-process, "kafka" publishes requests
	// to the notification topic and lets market-api consume them.
	NotificationRequester string `mapstructure:"notification_requester"`
	// "memory" | "redis"
	InAppBus string `mapstructure:"in_app_bus"`

	SenderTimeoutSeconds        int `mapstructure:"sender_timeout_seconds"`
	NotificationMaxAttempts     int `mapstructure:"notification_max_attempts"`
	NotificationGraceSeconds    int `mapstructure:"notification_grace_seconds"`
	NotificationDefaultTTLHours int `mapstructure:"notification_default_ttl_hours"`

	WorkerHTTPAddr                 string `mapstructure:"worker_http_addr"`
	WorkerNotificationSweepSeconds int    `mapstructure:"worker_notification_sweep_seconds"`
	WorkerNotificationBatchSize    int    `mapstructure:"worker_notification_batch_size"`
	WorkerNotificationLeaseSeconds int    `mapstructure:"worker_notification_lease_seconds"`
	WorkerReconcileSweepSeconds    int    `mapstructure:"worker_reconcile_sweep_seconds"`
	WorkerPurgeSweepSeconds        int    `mapstructure:"worker_purge_sweep_seconds"`
	ReconcileDelayMillis           int    `mapstructure:"reconcile_delay_millis"`
}

type CarriersConfig struct {
	// "live" uses the carrier adapters below, "fake" uses the deterministic fake.
	Mode           string `mapstructure:"mode"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	// "memory" | "redis"
	RateLimiter string `mapstructure:"rate_limiter"`

	UPS   CarrierEndpoint `mapstructure:"ups"`
	FedEx CarrierEndpoint `mapstructure:"fedex"`
	DHL   CarrierEndpoint `mapstructure:"dhl"`
	USPS  CarrierEndpoint `mapstructure:"usps"`
}

type CarrierEndpoint struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type SendersConfig struct {
	// "log" | "relay"
	Mode     string `mapstructure:"mode"`
	EmailURL string `mapstructure:"email_url"`
	SMSURL   string `mapstructure:"sms_url"`
	PushURL  string `mapstructure:"push_url"`
	APIKey   string `mapstructure:"api_key"`
}

// LoadConfig reads the YAML file and lets MARKETSHIP_<SECTION>_<KEY> env vars override it.
func LoadConfig(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// bindEnvs registers every leaf key so env overrides work for keys absent from the file.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		if field.Type.Kind() == reflect.Struct {
			bindEnvs(v, field.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}
