package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
		FormTTL         time.Duration // open forms are dropped after FormTTL; zero: never
	}

	// APIConfig points at the remote SETA REST API.
	APIConfig struct {
		BaseURL       string
		SessionCookie string
		Timeout       time.Duration // zero: wait indefinitely
	}

	DatabaseConfig struct {
		Engine     string // postgres | sqlite
		Host       string
		Port       int
		Name       string
		User       string
		Password   string
		DisableTLS bool
		Path       string // sqlite file
	}

	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		RollbarToken     string
		SendgridApiKey   string
		ReceiptsEnabled  bool
		defaultFromEmail string

		Server   ServerConfig
		API      APIConfig
		Database DatabaseConfig
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "SETA Admin")
	v.SetDefault("secretKey", "k2m-9s$z!v@1r^q7&seta+admin)dev(only#8x")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("receiptsEnabled", true)

	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("serverDisableReqLogs", false)
	v.SetDefault("serverFormTTL", 12*time.Hour)

	v.SetDefault("apiBaseURL", "http://localhost:8080/api")
	v.SetDefault("apiSessionCookie", "seta_session")
	v.SetDefault("apiTimeout", time.Duration(0))

	v.SetDefault("databaseEngine", "sqlite")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", 5432)
	v.SetDefault("databaseName", "seta")
	v.SetDefault("databaseUser", "seta")
	v.SetDefault("databasePassword", "")
	v.SetDefault("databaseDisableTLS", true)
	v.SetDefault("databasePath", "seta.db")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  v.GetString("frontendBaseURL"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		ReceiptsEnabled:  v.GetBool("receiptsEnabled"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Address:         v.GetString("serverAddress"),
			DebugHost:       v.GetString("serverDebugHost"),
			ShutdownTimeout: v.GetDuration("serverShutdownTimeout"),
			DisableReqLogs:  v.GetBool("serverDisableReqLogs"),
			FormTTL:         v.GetDuration("serverFormTTL"),
		},
		API: APIConfig{
			BaseURL:       strings.TrimRight(v.GetString("apiBaseURL"), "/"),
			SessionCookie: v.GetString("apiSessionCookie"),
			Timeout:       v.GetDuration("apiTimeout"),
		},
		Database: DatabaseConfig{
			Engine:     v.GetString("databaseEngine"),
			Host:       v.GetString("databaseHost"),
			Port:       v.GetInt("databasePort"),
			Name:       v.GetString("databaseName"),
			User:       v.GetString("databaseUser"),
			Password:   v.GetString("databasePassword"),
			DisableTLS: v.GetBool("databaseDisableTLS"),
			Path:       v.GetString("databasePath"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no .env file, no remote logging, in-memory sqlite.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "SETA Admin",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		defaultFromEmail: "noreply@localhost",
		Server:           ServerConfig{DisableReqLogs: true, ShutdownTimeout: time.Second},
		API:              APIConfig{BaseURL: "http://localhost:8080/api", SessionCookie: "seta_session"},
		Database:         DatabaseConfig{Engine: "sqlite", Path: ":memory:"},
	}
}
