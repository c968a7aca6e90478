package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mealassist-backend/internal/components/configutil"
	"mealassist-backend/internal/components/telemetry"
	"mealassist-backend/internal/cookiestore"
	"mealassist-backend/internal/environment"
	"mealassist-backend/internal/requestchain"
	"mealassist-backend/internal/session"
)

const (
	StorageFile = "file"
	StorageSql  = "sql"
)

type StorageConfig struct {
	// Kind is either "file" (the default) or "sql".
	Kind      string `json:"kind"`
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

type Config struct {
	Username          string           `json:"username"`
	Password          string           `json:"password"`
	BaseUrl           string           `json:"base_url"`
	StateDir          string           `json:"state_dir"`
	Ephemeral         bool             `json:"ephemeral"`
	Storage           StorageConfig    `json:"storage"`
	RequestsPerSecond float64          `json:"requests_per_second"`
	Verbose           bool             `json:"verbose"`
	Telemetry         telemetry.Config `json:"telemetry"`
}

var errUsage = errors.New("usage")

// loadConfig reads the config file, a missing file is not an error. The
// credentials may also come from MEALASSIST_USERNAME and MEALASSIST_PASSWORD.
func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if v := os.Getenv("MEALASSIST_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("MEALASSIST_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}
	if cfg.Storage.Kind == "" {
		cfg.Storage.Kind = StorageFile
	}
	return cfg, nil
}

func defaultStateDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".mealassist"
	}
	return filepath.Join(dir, "mealassist")
}

// openStorage returns the durable cookie storage described by the config and
// the probe deciding whether it may be used.
func openStorage(ctx context.Context, cfg Config) (cookiestore.Storage, environment.Probe, func(), error) {
	switch cfg.Storage.Kind {
	case StorageFile:
		storage := cookiestore.NewFileStorage(cfg.StateDir)
		if cfg.Storage.File != "" {
			storage = cookiestore.FileStorage{Path: cfg.Storage.File}
		}
		return storage, probeFor(cfg, filepath.Dir(storage.Path)), func() {}, nil
	case StorageSql:
		if cfg.Username == "" {
			return nil, nil, nil, fmt.Errorf("%w: sql storage needs a username to key the record", errUsage)
		}
		db, err := configutil.LibsqlConfig{
			File:      cfg.Storage.File,
			Url:       cfg.Storage.Url,
			AuthToken: cfg.Storage.AuthToken,
		}.OpenDB()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open cookie database: %w", err)
		}
		closeDb := func() {
			err := db.Close()
			if err != nil {
				slog.Warn("failed to close cookie database", "err", err)
			}
		}
		storage, err := cookiestore.NewSQLStorage(ctx, db, cfg.Username)
		if err != nil {
			closeDb()
			return nil, nil, nil, err
		}
		var probe environment.Probe = environment.Static(!cfg.Ephemeral)
		if cfg.Storage.Url == "" {
			probe = probeFor(cfg, filepath.Dir(cfg.Storage.File))
		}
		return storage, probe, closeDb, nil
	}
	return nil, nil, nil, fmt.Errorf("%w: unknown storage kind %q", errUsage, cfg.Storage.Kind)
}

func probeFor(cfg Config, dir string) environment.Probe {
	if cfg.Ephemeral {
		return environment.Static(false)
	}
	return environment.NewDetector(dir)
}

// openSession builds a session from the config, the returned func releases
// the storage.
func openSession(ctx context.Context, cfg Config) (*session.Session, func(), error) {
	creds, err := session.NewCredentials(cfg.Username, cfg.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: set username and password in the config", err)
	}
	storage, probe, release, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	s, err := session.New(creds, session.Options{
		BaseUrl:           cfg.BaseUrl,
		Storage:           storage,
		Probe:             probe,
		Tel:               telemetry.SlogAPI{},
		RequestsPerSecond: cfg.RequestsPerSecond,
		Transport:         transportOptions,
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return s, release, nil
}

// transportOptions is replaced in tests that talk to a local server.
var transportOptions requestchain.TransportOptions
