package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  notification_requested_topic_name: "notification.requested"
redis:
  host: "localhost"
  port: 6379
log:
  environment: "production"
  level: "info"
marketship:
  http_addr: ":8080"
  kafka_consumer_group: "market-api"
  notification_requester: "kafka"
  reconcile_delay_millis: 1000
carriers:
  mode: "live"
  rate_limiter: "redis"
  ups:
    base_url: "https://ups.example"
    api_key: "k1"
senders:
  mode: "relay"
  email_url: "http://relay/email"
`), 0o600))
	return p
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t))
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "notification.requested", cfg.Kafka.NotificationRequestedTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.MarketShip.HTTPAddr)
	require.Equal(t, "kafka", cfg.MarketShip.NotificationRequester)
	require.Equal(t, 1000, cfg.MarketShip.ReconcileDelayMillis)
	require.Equal(t, "https://ups.example", cfg.Carriers.UPS.BaseURL)
	require.Equal(t, "http://relay/email", cfg.Senders.EmailURL)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr())
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers())
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	p := writeConfig(t)
	t.Setenv("MARKETSHIP_DATABASE_PASSWORD", "secret")
	t.Setenv("MARKETSHIP_CARRIERS_FEDEX_API_KEY", "fx-key")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.Database.Password)
	require.Equal(t, "fx-key", cfg.Carriers.FedEx.APIKey)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDatabaseConfig_ConnString(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5432, Username: "u", Password: "p", DBName: "db"}
	require.Equal(t, "postgres://u:p@h:5432/db?sslmode=disable", d.ConnString())

	d.SSLMode = "require"
	require.Equal(t, "postgres://u:p@h:5432/db?sslmode=require", d.ConnString())
}
