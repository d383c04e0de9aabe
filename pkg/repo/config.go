package repo

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds repository-local settings persisted as TOML in
// .geovault/config.toml.
type Config struct {
	Core CoreConfig `toml:"core"`
	User UserConfig `toml:"user"`
}

// CoreConfig pins repository-level behavior, notably the storage codec.
type CoreConfig struct {
	Format string `toml:"format,omitempty"`
}

// UserConfig carries committer identity. Both keys are mandatory for
// committing unless an explicit committer is supplied.
type UserConfig struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

// MissingConfigError reports a mandatory configuration key that is unset.
// The message tells the user how to set it.
type MissingConfigError struct {
	Key         string
	Placeholder string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("%s not found in config. Use geovault config %s <%s> to configure it.",
		e.Key, e.Key, e.Placeholder)
}

func (r *Repo) configPath() string {
	return filepath.Join(r.VaultDir, "config.toml")
}

// ReadConfig reads .geovault/config.toml. A missing file yields an empty
// config.
func (r *Repo) ReadConfig() (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(r.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("read config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// WriteConfig atomically writes .geovault/config.toml.
func (r *Repo) WriteConfig(cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("write config: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(r.VaultDir, ".config-tmp-*")
	if err != nil {
		return fmt.Errorf("write config: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write config: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: close: %w", err)
	}
	if err := os.Rename(tmpName, r.configPath()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write config: rename: %w", err)
	}
	return nil
}

// ConfigGet returns the value of a dotted config key, or "" when unset.
func (r *Repo) ConfigGet(key string) (string, error) {
	cfg, err := r.ReadConfig()
	if err != nil {
		return "", err
	}
	switch key {
	case "user.name":
		return cfg.User.Name, nil
	case "user.email":
		return cfg.User.Email, nil
	case "core.format":
		return cfg.Core.Format, nil
	default:
		return "", fmt.Errorf("config get: unknown key %q", key)
	}
}

// ConfigSet updates a dotted config key.
func (r *Repo) ConfigSet(key, value string) error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	switch key {
	case "user.name":
		cfg.User.Name = value
	case "user.email":
		cfg.User.Email = value
	case "core.format":
		cfg.Core.Format = value
	default:
		return fmt.Errorf("config set: unknown key %q", key)
	}
	return r.WriteConfig(cfg)
}
