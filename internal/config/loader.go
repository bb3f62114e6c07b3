package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file read from the config directory.
const FileName = "console.yaml"

// reloadDelay coalesces the burst of events editors emit for one save.
const reloadDelay = 200 * time.Millisecond

// ${VAR} or ${VAR:default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(m[1]); ok {
			return val
		}
		return m[2]
	})
}

// LoadFile reads a YAML file, expands environment references, and decodes it
// over dest. Keys absent from the file keep the values already in dest.
func LoadFile(path string, dest interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), dest); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Loader owns the console configuration and reloads it when console.yaml
// changes. Readers always see a complete, validated Config.
type Loader struct {
	dir    string
	logger *slog.Logger
	cfg    atomic.Pointer[Config]

	mu      sync.Mutex
	hooks   []func()
	watcher *fsnotify.Watcher
	timer   *time.Timer
}

func NewLoader(configDir string, logger *slog.Logger) *Loader {
	return &Loader{dir: configDir, logger: logger}
}

// Load reads console.yaml over the defaults. An invalid file leaves the
// current configuration in place.
func (l *Loader) Load() error {
	cfg := DefaultConfig()
	if err := LoadFile(filepath.Join(l.dir, FileName), cfg); err != nil {
		return fmt.Errorf("load console config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid console config: %w", err)
	}
	l.cfg.Store(cfg)
	l.logger.Info("configuration loaded", "dir", l.dir, "backend", cfg.Backend.BaseURL)
	return nil
}

// Config returns the current configuration, or nil before the first Load.
func (l *Loader) Config() *Config {
	return l.cfg.Load()
}

// Validate rejects configurations the console cannot start with.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if !strings.HasPrefix(c.Auth.LoginRoute, "/") {
		return fmt.Errorf("auth.login_route must be an absolute path, got %q", c.Auth.LoginRoute)
	}
	if c.Auth.CookieName == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.Auth.DemoMode && len(c.Auth.DemoPatterns) == 0 {
		return fmt.Errorf("auth.demo_patterns is required when demo_mode is enabled")
	}
	return nil
}

// OnReload registers fn to run after every successful reload.
func (l *Loader) OnReload(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// Watch reloads the configuration whenever console.yaml is written or
// replaced. Call Close to stop watching.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", l.dir, err)
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()

	go l.watch(watcher)
	return nil
}

func (l *Loader) watch(watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != FileName {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				l.scheduleReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error("fsnotify error", "error", err)
		}
	}
}

func (l *Loader) scheduleReload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(reloadDelay, l.reload)
}

func (l *Loader) reload() {
	l.logger.Info("config file changed, reloading", "file", FileName)
	if err := l.Load(); err != nil {
		l.logger.Error("failed to reload config, keeping previous", "error", err)
		return
	}

	l.mu.Lock()
	hooks := append([]func(){}, l.hooks...)
	l.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Close stops watching for changes.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer != nil {
		l.timer.Stop()
	}
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	l.watcher = nil
	return err
}
