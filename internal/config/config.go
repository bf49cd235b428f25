// Package config loads process-level configuration with viper. Strict-
// session policy itself is intentionally NOT part of this struct — it's
// resolved fresh from the environment on every call by internal/policy,
// since tests and operators mutate it between calls.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds process-lifetime application configuration: everything
// that is safe to read once at startup and hold for the life of the
// process.
type Config struct {
	Env                string `mapstructure:"env"`
	ListenAddr         string `mapstructure:"listen_addr"`
	LocalStackEndpoint string `mapstructure:"localstack_endpoint"`

	Sealing     SealingConfig
	Signer      SignerConfig
	DB          DBConfig
	Automation  AutomationConfig
	Metrics     MetricsConfig
	AuthConfig  AuthConfig
}

// SealingConfig governs internal/sealed's master key resolution.
type SealingConfig struct {
	MasterKey            string `mapstructure:"master_key"`
	KMSKeyID              string `mapstructure:"kms_key_id"`
	AWSRegion             string `mapstructure:"aws_region"`
	AllowInsecureDevKeys  bool   `mapstructure:"allow_insecure_dev_keys"`
}

// SignerConfig governs internal/attestation's signer key resolution.
type SignerConfig struct {
	Key        string `mapstructure:"key"`
	KMSKeyID   string `mapstructure:"kms_key_id"`
	AWSRegion  string `mapstructure:"aws_region"`
}

// DBConfig is the sqlite store's on-disk location.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// AutomationConfig governs the escrow reconciliation loop's cadence.
type AutomationConfig struct {
	IntervalSec int `mapstructure:"interval_sec"`
}

// MetricsConfig governs the rolling per-route request counters of
// GET /metrics. When RedisAddr is empty, counters are kept in an
// in-process per-route timestamp list instead of Redis.
type MetricsConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// AuthConfig carries the three static bearer-token tiers recognized by
// role resolution, above the agents table itself.
type AuthConfig struct {
	AdminKey    string `mapstructure:"admin_key"`
	OperatorKey string `mapstructure:"operator_key"`
	ReadonlyKey string `mapstructure:"readonly_key"`
	AllowPublicRead bool `mapstructure:"allow_public_read"`
}

// Load reads configuration from environment variables prefixed with NEG_.
// Strict-mode flags live under the separate NEG_STRICT_ prefix handled by
// internal/policy and are not read here.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")
	v.SetDefault("listen_addr", ":8080")

	v.SetDefault("sealing.allow_insecure_dev_keys", true)
	v.SetDefault("sealing.aws_region", "us-east-1")

	v.SetDefault("signer.aws_region", "us-east-1")

	v.SetDefault("db.path", "negotiation.db")

	v.SetDefault("automation.interval_sec", 15)

	v.SetDefault("auth.allow_public_read", true)

	cfg := &Config{
		Env:                v.GetString("env"),
		ListenAddr:         v.GetString("listen_addr"),
		LocalStackEndpoint: v.GetString("localstack_endpoint"),
		Sealing: SealingConfig{
			MasterKey:            v.GetString("sealing.master_key"),
			KMSKeyID:             v.GetString("sealing.kms_key_id"),
			AWSRegion:            v.GetString("sealing.aws_region"),
			AllowInsecureDevKeys: v.GetBool("sealing.allow_insecure_dev_keys"),
		},
		Signer: SignerConfig{
			Key:       v.GetString("signer.key"),
			KMSKeyID:  v.GetString("signer.kms_key_id"),
			AWSRegion: v.GetString("signer.aws_region"),
		},
		DB: DBConfig{Path: v.GetString("db.path")},
		Automation: AutomationConfig{
			IntervalSec: v.GetInt("automation.interval_sec"),
		},
		Metrics: MetricsConfig{
			RedisAddr:     v.GetString("metrics.redis_addr"),
			RedisPassword: v.GetString("metrics.redis_password"),
			RedisDB:       v.GetInt("metrics.redis_db"),
		},
		AuthConfig: AuthConfig{
			AdminKey:        v.GetString("auth.admin_key"),
			OperatorKey:     v.GetString("auth.operator_key"),
			ReadonlyKey:     v.GetString("auth.readonly_key"),
			AllowPublicRead: v.GetBool("auth.allow_public_read"),
		},
	}

	return cfg, nil
}

// Production reports whether env denotes a production deployment, the
// gate sealed.KeyFromConfig and attestation.KeyFromConfig use to refuse a
// missing operator-supplied key.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}
