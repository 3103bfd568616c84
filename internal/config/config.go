package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	LedgerNamespace     string
	TreasuryAuthority   string // signs payment asset mints for funded deposits
	StripeSecretKey     string
	StripeWebhookSecret string
	FrontendURLEndsWith string
	AllowCrossSiteDev   bool
	HealthAdminKey      string

	// Optional first admin account, created at startup when both are set.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LEDGER_NAMESPACE", "carbonpay")
	viper.SetDefault("TREASURY_AUTHORITY", "treasury")

	env := viper.GetString("APP_ENV")
	dbURL := viper.GetString("DATABASE_URL")
	if dbURL == "" && env != "production" {
		dbURL = "sqlite://carbonpay.db"
	}

	return &Config{
		Env:                 env,
		Port:                viper.GetString("PORT"),
		SessionSecret:       viper.GetString("SESSION_SECRET"),
		DatabaseURL:         dbURL,
		RedisURL:            viper.GetString("REDIS_URL"),
		LedgerNamespace:     viper.GetString("LEDGER_NAMESPACE"),
		TreasuryAuthority:   viper.GetString("TREASURY_AUTHORITY"),
		StripeSecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
		FrontendURLEndsWith: viper.GetString("FRONTEND_URL_ENDS_WITH"),
		AllowCrossSiteDev:   strings.EqualFold(viper.GetString("ALLOW_CROSS_SITE_DEV"), "true"),
		HealthAdminKey:      viper.GetString("HEALTH_ADMIN_KEY"),

		BootstrapAdminEmail:    viper.GetString("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapAdminPassword: viper.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
	}, nil
}
