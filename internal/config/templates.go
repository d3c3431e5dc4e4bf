package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

var ErrConfigExists = errors.New("config: already exists")

const templateHeader = "# boop configuration\n\n"

// Template renders cfg as a commented TOML document that Load accepts.
func Template(cfg Config) ([]byte, error) {
	raw := fileConfig{
		Port:           cfg.Port,
		ResolveTimeout: cfg.ResolveTimeout.String(),
		ErrorPolicy:    string(cfg.ErrorPolicy),
		Announcer:      string(cfg.Announcer),
		SpeechCommand:  nonNil(cfg.SpeechCommand),
		AdminAddr:      cfg.AdminAddr,
		AdminToken:     cfg.AdminToken,
		CorsOrigins:    nonNil(cfg.CorsOrigins),
		MDNS:           cfg.MDNS,
	}
	body, err := toml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("config: render template: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	buf.Write(body)
	return buf.Bytes(), nil
}

// WriteTemplate writes Template(cfg) to path, creating parent directories.
func WriteTemplate(path string, cfg Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	data, err := Template(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
