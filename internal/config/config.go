// Package config loads application configuration from config files,
// environment variables, and dotenv overlays.
package config

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem handle used for existence probes; tests swap in
// an in-memory fs.
var AppFs = afero.NewOsFs()

// Config holds the application configuration.
type Config struct {
	// DatabasePath is the snapshot file path, or ":memory:".
	DatabasePath string

	// ReadOnly opens the database without write access.
	ReadOnly bool

	// WatchReload hot-reloads a read-only database on snapshot changes.
	WatchReload bool

	// RestURL is the base URL of a PostgREST-compatible endpoint, when the
	// REST adapter is used instead of the embedded engine.
	RestURL string

	// RestAPIKey is sent as a bearer token by the REST adapter.
	RestAPIKey string
}

// Load reads configuration from .restlite config files, the RESTLITE_*
// environment, and .env/.env.local dotenv files (.env.local wins).
func Load() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName(".restlite")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "restlite"))

	v.SetEnvPrefix("RESTLITE")
	v.AutomaticEnv()

	v.SetDefault("database_path", "data.db")
	v.SetDefault("read_only", false)
	v.SetDefault("watch_reload", false)

	// Missing config file is fine; env and defaults still apply.
	_ = v.ReadInConfig()

	if ok, _ := afero.Exists(AppFs, ".env"); ok {
		_ = godotenv.Load()
	}
	if ok, _ := afero.Exists(AppFs, ".env.local"); ok {
		_ = godotenv.Overload(".env.local")
	}

	cfg := &Config{
		DatabasePath: v.GetString("database_path"),
		ReadOnly:     v.GetBool("read_only"),
		WatchReload:  v.GetBool("watch_reload"),
		RestURL:      v.GetString("rest_url"),
		RestAPIKey:   v.GetString("rest_api_key"),
	}
	return cfg, nil
}
