// Package appconfig loads process settings for rsvpd from flags, the
// environment, an optional YAML file and .env.
//
// Precedence, highest first: changed flags, RSVP_* variables (and the legacy
// names bound below), the config file, defaults.
package appconfig

import (
	"errors"
	"fmt"
	"strings"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"github.com/cactusmakesperfect/rsvp/mailer"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "RSVP"

// Settings is everything rsvpd needs to start.
type Settings struct {
	Addr       string
	LogLevel   string
	OTelStdout bool
	// ConfigFile is the YAML file that was read, if any.
	ConfigFile string

	AllowOrigins []string

	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string
	RSVPPrefix     string

	SMTP mailer.SMTPConfig

	Service rsvp.Config
}

// SMTPEnabled reports whether an SMTP relay is configured.
func (s Settings) SMTPEnabled() bool {
	return s.SMTP.Host != ""
}

// RegisterFlags adds the rsvpd flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file (default ./config.yaml when present)")
	fs.String("addr", ":8000", "HTTP listen address")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.Bool("otel-stdout", false, "export OpenTelemetry metrics to stdout")
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set.
func LoadDotEnv(files ...string) error {
	return godotenv.Load(files...)
}

// Load resolves Settings. fs must already be parsed; it may be nil.
func Load(fs *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Settings{}, err
	}

	configFile := ""
	if fs != nil {
		for key, name := range map[string]string{
			"addr":        "addr",
			"log_level":   "log-level",
			"otel_stdout": "otel-stdout",
		} {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Settings{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}

	if err := readConfigFile(v, configFile); err != nil {
		return Settings{}, err
	}

	return decode(v), nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := rsvp.DefaultConfig()

	v.SetDefault("addr", ":8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("otel_stdout", false)
	v.SetDefault("cors.origins", []string{"*"})
	v.SetDefault("redis.rsvp_prefix", "rsvp")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from_name", "Cactus Makes Perfect")

	v.SetDefault("token.issuer", d.Token.Issuer)
	v.SetDefault("token.validity", d.Token.Validity)
	v.SetDefault("token.leeway", d.Token.Leeway)

	v.SetDefault("login.code_digits", d.Login.CodeDigits)
	v.SetDefault("login.challenge_ttl", d.Login.ChallengeTTL)
	v.SetDefault("login.max_attempts", d.Login.MaxAttempts)
	v.SetDefault("login.require_invite", d.Login.RequireInvite)
	v.SetDefault("login.expose_code", d.Login.ExposeCode)
	v.SetDefault("login.public_url", d.Login.PublicURL)
	v.SetDefault("login.redis_prefix", d.Login.RedisPrefix)
	v.SetDefault("login.identifier_throttle", d.Login.EnableIdentifierThrottle)
	v.SetDefault("login.ip_throttle", d.Login.EnableIPThrottle)
	v.SetDefault("login.max_requests", d.Login.MaxRequests)
	v.SetDefault("login.max_verifies", d.Login.MaxVerifies)
	v.SetDefault("login.throttle_window", d.Login.ThrottleWindow)

	v.SetDefault("rsvp.max_note_length", d.RSVP.MaxNoteLength)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("security.production_mode", d.Security.ProductionMode)
}

// bindEnv maps the unprefixed names used by existing deployments.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"token.secret":     {"RSVP_TOKEN_SECRET", "SECRET_KEY", "JWT_SECRET"},
		"database.url":     {"RSVP_DATABASE_URL", "DATABASE_URL"},
		"database.driver":  {"RSVP_DATABASE_DRIVER", "DATABASE_DRIVER"},
		"redis.url":        {"RSVP_REDIS_URL", "REDIS_URL"},
		"login.public_url": {"RSVP_LOGIN_PUBLIC_URL", "PUBLIC_URL"},
		"smtp.host":        {"RSVP_SMTP_HOST", "SMTP_HOST"},
		"smtp.port":        {"RSVP_SMTP_PORT", "SMTP_PORT"},
		"smtp.username":    {"RSVP_SMTP_USERNAME", "SMTP_USERNAME", "SMTP_USER"},
		"smtp.password":    {"RSVP_SMTP_PASSWORD", "SMTP_PASSWORD", "SMTP_PASS"},
		"smtp.from":        {"RSVP_SMTP_FROM", "SMTP_FROM"},
		"smtp.from_name":   {"RSVP_SMTP_FROM_NAME", "SMTP_FROM_NAME"},
		"log_level":        {"RSVP_LOG_LEVEL", "LOG_LEVEL"},
	}
	for key, names := range bindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func decode(v *viper.Viper) Settings {
	s := Settings{
		Addr:           v.GetString("addr"),
		LogLevel:       v.GetString("log_level"),
		OTelStdout:     v.GetBool("otel_stdout"),
		ConfigFile:     v.ConfigFileUsed(),
		AllowOrigins:   splitList(v.GetStringSlice("cors.origins")),
		DatabaseURL:    v.GetString("database.url"),
		DatabaseDriver: v.GetString("database.driver"),
		RedisURL:       v.GetString("redis.url"),
		RSVPPrefix:     v.GetString("redis.rsvp_prefix"),
		SMTP: mailer.SMTPConfig{
			Host:        v.GetString("smtp.host"),
			Port:        v.GetInt("smtp.port"),
			Username:    v.GetString("smtp.username"),
			Password:    v.GetString("smtp.password"),
			FromAddress: v.GetString("smtp.from"),
			FromName:    v.GetString("smtp.from_name"),
		},
	}
	if s.DatabaseURL != "" && s.DatabaseDriver == "" {
		s.DatabaseDriver = inferDriver(s.DatabaseURL)
	}

	cfg := rsvp.DefaultConfig()
	if secret := v.GetString("token.secret"); secret != "" {
		cfg.Token.Secret = []byte(secret)
	}
	cfg.Token.Issuer = v.GetString("token.issuer")
	cfg.Token.Validity = v.GetDuration("token.validity")
	cfg.Token.Leeway = v.GetDuration("token.leeway")

	// Without Redis there is nowhere to keep challenges.
	switch mode := v.GetString("login.mode"); {
	case mode != "":
		cfg.Login.Mode = rsvp.LoginMode(strings.ToLower(mode))
	case s.RedisURL != "":
		cfg.Login.Mode = rsvp.LoginChallenge
	default:
		cfg.Login.Mode = rsvp.LoginStatic
	}
	cfg.Login.CodeDigits = v.GetInt("login.code_digits")
	cfg.Login.ChallengeTTL = v.GetDuration("login.challenge_ttl")
	cfg.Login.MaxAttempts = v.GetInt("login.max_attempts")
	cfg.Login.RequireInvite = v.GetBool("login.require_invite")
	cfg.Login.ExposeCode = v.GetBool("login.expose_code")
	cfg.Login.PublicURL = v.GetString("login.public_url")
	cfg.Login.RedisPrefix = v.GetString("login.redis_prefix")
	cfg.Login.EnableIdentifierThrottle = v.GetBool("login.identifier_throttle")
	cfg.Login.EnableIPThrottle = v.GetBool("login.ip_throttle")
	cfg.Login.MaxRequests = v.GetInt("login.max_requests")
	cfg.Login.MaxVerifies = v.GetInt("login.max_verifies")
	cfg.Login.ThrottleWindow = v.GetDuration("login.throttle_window")

	cfg.RSVP.MaxNoteLength = v.GetInt("rsvp.max_note_length")

	cfg.Audit.Enabled = v.GetBool("audit.enabled")
	cfg.Audit.BufferSize = v.GetInt("audit.buffer_size")
	cfg.Audit.DropIfFull = v.GetBool("audit.drop_if_full")

	cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	cfg.Security.ProductionMode = v.GetBool("security.production_mode")

	s.Service = cfg
	return s
}

func inferDriver(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"),
		strings.HasPrefix(lower, "postgresql://"),
		strings.Contains(lower, "host="):
		return "postgres"
	default:
		return "sqlite"
	}
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
