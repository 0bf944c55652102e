package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName                   string
		Build                     string
		Env                       string // DEV (local; default), TEST, QA, PROD
		Debug                     bool
		TestMode                  bool
		WorkDir                   string
		SecretKey                 string
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string

		Server   ServerConfig
		Database DatabaseConfig
		Email    EmailConfig
		Authz    AuthzConfig
		Stock    StockConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		InMemory      bool
	}

	EmailConfig struct {
		DefaultFrom     mail.Address
		SendgridAPIKey  string
		FrontendBaseURL string
	}

	AuthzConfig struct {
		Mode string // enforce (default), shadow, disabled
	}

	StockConfig struct {
		// roles notified by email whenever a stock-in is recorded
		NotifyRoles []string
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the app configuration from the environment.
// Variables are prefixed by the ENV name, e.g. DEV_DATABASE_HOST, PROD_SECRETKEY.
// A `config/.env.<env>` file at the project root is loaded first when present.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(strings.TrimSpace(os.Getenv("ENV")))
	if env == "" {
		env = "DEV"
	}
	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Stockroom")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("secretKey", "k2e!v9$wq0l7=t_8cx@r4p#3n&uf5h1yj(6b)ma*zd+gs")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 15*time.Minute)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "stockroom")
	v.SetDefault("database.user", "stockroom")
	v.SetDefault("database.password", "stockroom")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", env == "DEV" || env == "TEST")
	v.SetDefault("database.inMemory", false)

	v.SetDefault("email.defaultFrom", "Stockroom <noreply@localhost>")
	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.frontendBaseUrl", "http://localhost:3000")

	v.SetDefault("authz.mode", "enforce")
	v.SetDefault("stock.notifyRoles", "admin:,storekeeper:")

	from, err := mail.ParseAddress(v.GetString("email.defaultFrom"))
	if err != nil {
		log.Fatalf("config.mail.ParseAddress(%s): %v", v.GetString("email.defaultFrom"), err)
	}

	return &Config{
		AppName:                   v.GetString("appName"),
		Build:                     v.GetString("build"),
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  env == "TEST",
		WorkDir:                   wd,
		SecretKey:                 v.GetString("secretKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		RollbarToken:              v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			InMemory:      v.GetBool("database.inMemory"),
		},
		Email: EmailConfig{
			DefaultFrom:     *from,
			SendgridAPIKey:  v.GetString("email.sendgridApiKey"),
			FrontendBaseURL: strings.TrimRight(v.GetString("email.frontendBaseUrl"), "/"),
		},
		Authz: AuthzConfig{
			Mode: strings.ToLower(v.GetString("authz.mode")),
		},
		Stock: StockConfig{
			NotifyRoles: splitList(v.GetString("stock.notifyRoles")),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
