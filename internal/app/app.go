// Package app assembles authdeck's services from configuration.
package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Dicklesworthstone/authdeck/internal/avatar"
	"github.com/Dicklesworthstone/authdeck/internal/config"
	"github.com/Dicklesworthstone/authdeck/internal/db"
	"github.com/Dicklesworthstone/authdeck/internal/gateway"
	"github.com/Dicklesworthstone/authdeck/internal/i18n"
	"github.com/Dicklesworthstone/authdeck/internal/logs"
	"github.com/Dicklesworthstone/authdeck/internal/provider"
	"github.com/Dicklesworthstone/authdeck/internal/provider/firebase"
	"github.com/Dicklesworthstone/authdeck/internal/provider/local"
	"github.com/Dicklesworthstone/authdeck/internal/session"
	"github.com/Dicklesworthstone/authdeck/internal/sessionfile"
)

// Options configures New.
type Options struct {
	Config *config.Config

	// Logger overrides the log file from Config.
	Logger *slog.Logger

	// HTTPClient is passed to the firebase provider.
	HTTPClient *http.Client

	// Watch overrides runtime.file_watching.
	Watch *bool

	// Chooser is used by the avatar picker's PickFromLibrary.
	Chooser avatar.Chooser

	// BcryptCost and Now are passed to the local provider.
	BcryptCost int
	Now        func() time.Time
}

// App holds the running services.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *db.DB
	Provider provider.Provider
	Observer *session.Observer
	Gateway  *gateway.Gateway
	Catalog  *i18n.Catalog
	Avatar   *avatar.System

	closers []io.Closer
}

// New opens the database, builds the configured provider and starts the
// session observer.
func New(opts Options) (_ *App, err error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Defaults()
	}

	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Logger = opts.Logger
	if a.Logger == nil {
		logger, closer, openErr := logs.Open(cfg.LogPath(), cfg.Log.Level)
		if openErr != nil {
			return nil, openErr
		}
		a.Logger = logger
		a.closers = append(a.closers, closer)
	}

	a.Catalog, err = i18n.New(cfg.Locale)
	if err != nil {
		return nil, err
	}

	a.DB, err = db.OpenAt(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, a.DB)

	registry := NewRegistry(cfg, a.DB, a.Logger, opts)
	a.Provider, err = registry.Open(cfg.Provider)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Provider)

	a.Observer = session.NewObserver(a.Provider, session.Options{Logger: a.Logger})
	a.Observer.Start()

	sessions := db.NewSessionTracker()
	if cur := a.Observer.Current(); cur.IsAuthenticated() {
		sessions.Start(a.Provider.ID(), cur.UID())
	}

	a.Gateway = gateway.New(a.Provider, a.Observer, gateway.Options{
		Activity: a.DB,
		Sessions: sessions,
		Timeout:  cfg.Runtime.RequestTimeout.Duration(),
		Logger:   a.Logger,
	})

	a.Avatar = avatar.NewSystem(avatar.Config{
		LibraryDir:    cfg.Avatar.LibraryDir,
		CameraCommand: cfg.Avatar.CameraCommand,
		CacheDir:      cfg.AvatarCacheDir(),
		Chooser:       opts.Chooser,
		Logger:        a.Logger,
	})

	a.Logger.Debug("app started", "provider", a.Provider.ID(), "locale", a.Catalog.Tag().String())
	return a, nil
}

// NewRegistry registers the firebase and local provider factories.
func NewRegistry(cfg *config.Config, database *db.DB, logger *slog.Logger, opts Options) *provider.Registry {
	watch := cfg.Runtime.FileWatching
	if opts.Watch != nil {
		watch = *opts.Watch
	}
	debounce := cfg.Runtime.DebounceInterval.Duration()

	r := provider.NewRegistry()
	r.Register(firebase.ID, func() (provider.Provider, error) {
		return firebase.New(firebase.Config{
			APIKey:             cfg.Firebase.APIKey,
			IdentityToolkitURL: cfg.Firebase.IdentityToolkitURL,
			SecureTokenURL:     cfg.Firebase.SecureTokenURL,
			HTTPClient:         opts.HTTPClient,
			Timeout:            cfg.Runtime.RequestTimeout.Duration(),
			Session:            sessionfile.NewStore(cfg.SessionPath(), firebase.ID),
			WatchSession:       watch,
			WatchDebounce:      debounce,
			Logger:             logger,
			Now:                opts.Now,
		})
	})
	r.Register(local.ID, func() (provider.Provider, error) {
		key, err := SigningKey(cfg)
		if err != nil {
			return nil, err
		}
		return local.New(local.Config{
			DB:                database,
			SigningKey:        key,
			AllowSignup:       cfg.Local.AllowSignup,
			MaxFailedAttempts: cfg.Local.MaxFailedAttempts,
			LockoutWindow:     cfg.Local.LockoutWindow.Duration(),
			TokenTTL:          cfg.Local.TokenTTL.Duration(),
			ResetTTL:          cfg.Local.ResetTTL.Duration(),
			BcryptCost:        opts.BcryptCost,
			Session:           sessionfile.NewStore(cfg.SessionPath(), local.ID),
			WatchSession:      watch,
			WatchDebounce:     debounce,
			Logger:            logger,
			Now:               opts.Now,
		})
	})
	return r
}

// SigningKey returns the configured local signing key, or the generated key
// file's contents, creating the file on first use.
func SigningKey(cfg *config.Config) ([]byte, error) {
	if k := strings.TrimSpace(cfg.Local.SigningKey); k != "" {
		return []byte(k), nil
	}

	path := cfg.SigningKeyPath()
	data, err := os.ReadFile(path)
	if err == nil {
		if k := strings.TrimSpace(string(data)); k != "" {
			return []byte(k), nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	key := hex.EncodeToString(raw)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(key+"\n"), 0600); err != nil {
		return nil, fmt.Errorf("write signing key: %w", err)
	}
	return []byte(key), nil
}

// Close stops the observer and releases resources in reverse order.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	if a.Observer != nil {
		a.Observer.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// LocalProvider returns the local provider when it is the active one.
func (a *App) LocalProvider() (*local.Provider, bool) {
	p, ok := a.Provider.(*local.Provider)
	return p, ok
}

// FirebaseProvider returns the firebase provider when it is the active one.
func (a *App) FirebaseProvider() (*firebase.Provider, bool) {
	p, ok := a.Provider.(*firebase.Provider)
	return p, ok
}
