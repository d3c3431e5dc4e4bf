package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Connicpu/boop/internal/announce"
	"github.com/Connicpu/boop/internal/daemon"
	"github.com/Connicpu/boop/internal/protocol"
	"github.com/rs/zerolog/log"
)

const (
	EnvConfigPath = "BOOP_CONFIG"
	DirName       = "boop"
	FileName      = "boop.toml"
)

var ErrInvalidConfig = errors.New("config: invalid config")

// Config is the resolved boop configuration shared by client and daemon.
type Config struct {
	Port           int
	ResolveTimeout time.Duration
	ErrorPolicy    daemon.ErrorPolicy
	Announcer      announce.Kind
	SpeechCommand  []string
	AdminAddr      string
	AdminToken     string
	CorsOrigins    []string
	MDNS           bool
}

// fileConfig is the on-disk TOML shape.
type fileConfig struct {
	Port           int      `toml:"port" comment:"UDP port shared by every client and daemon on the subnet"`
	ResolveTimeout string   `toml:"resolve_timeout" comment:"How long the client waits for the local daemon; 0 waits forever"`
	ErrorPolicy    string   `toml:"error_policy" comment:"fatal stops the daemon on a failed reply or announcement; continue logs and keeps going"`
	Announcer      string   `toml:"announcer" comment:"speech or console"`
	SpeechCommand  []string `toml:"speech_command" comment:"Explicit speech command; the announcement text follows a -- argument at the end"`
	AdminAddr      string   `toml:"admin_addr" comment:"Status HTTP listen address, empty disables it"`
	AdminToken     string   `toml:"admin_token" comment:"Bearer token required on /status and /metrics, empty leaves them open"`
	CorsOrigins    []string `toml:"cors_origins" comment:"Origins allowed to call the status server"`
	MDNS           bool     `toml:"mdns" comment:"Advertise the daemon name over mDNS"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:           protocol.Port,
		ResolveTimeout: 3 * time.Second,
		ErrorPolicy:    daemon.PolicyFatal,
		Announcer:      announce.KindSpeech,
		SpeechCommand:  []string{},
		AdminAddr:      "",
		AdminToken:     "",
		CorsOrigins:    []string{},
		MDNS:           false,
	}
}

// DefaultPath is <UserConfigDir>/boop/boop.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate user config dir: %w", err)
	}
	return filepath.Join(dir, DirName, FileName), nil
}

// ResolvePath picks the config path: flag, then BOOP_CONFIG, then the
// default path. explicit reports whether the user named the file.
func ResolvePath(flagPath string) (path string, explicit bool, err error) {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p, true, nil
	}
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, true, nil
	}
	p, err := DefaultPath()
	return p, false, err
}

// LoadResolved loads the config ResolvePath selects. A missing file at the
// default path yields Default(); a missing explicit file is an error.
func LoadResolved(flagPath string) (Config, string, error) {
	path, explicit, err := ResolvePath(flagPath)
	if err != nil {
		return Config{}, "", err
	}
	cfg, err := Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("path", path).Msg("config: no config file, using defaults")
		return Default(), path, nil
	}
	return cfg, path, err
}

// Load decodes path on top of Default() and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	for _, key := range meta.Undecoded() {
		log.Warn().Str("path", path).Str("key", key.String()).Msg("config: unknown key ignored")
	}

	if meta.IsDefined("port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("resolve_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ResolveTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("%w: parse resolve_timeout: %w", ErrInvalidConfig, err)
		}
		cfg.ResolveTimeout = d
	}
	if meta.IsDefined("error_policy") {
		cfg.ErrorPolicy = daemon.ErrorPolicy(strings.TrimSpace(raw.ErrorPolicy))
	}
	if meta.IsDefined("announcer") {
		cfg.Announcer = announce.Kind(strings.TrimSpace(raw.Announcer))
	}
	if meta.IsDefined("speech_command") {
		cfg.SpeechCommand = normalizeList(raw.SpeechCommand)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}
	if meta.IsDefined("mdns") {
		cfg.MDNS = raw.MDNS
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, cfg.Port)
	}
	if cfg.ResolveTimeout < 0 {
		return fmt.Errorf("%w: negative resolve_timeout %s", ErrInvalidConfig, cfg.ResolveTimeout)
	}
	if _, err := daemon.ParseErrorPolicy(string(cfg.ErrorPolicy)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch announce.Kind(strings.ToLower(string(cfg.Announcer))) {
	case announce.KindSpeech, announce.KindConsole:
	default:
		return fmt.Errorf("%w: unknown announcer %q", ErrInvalidConfig, cfg.Announcer)
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
