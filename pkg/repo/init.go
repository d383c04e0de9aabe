package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/geovault/geovault/pkg/object"
)

const vaultDirName = ".geovault"

// Init creates a new geovault repository at path, persisting objects in the
// given serialization format. It creates the .geovault/ directory structure:
// HEAD, config.toml, objects/, and refs/heads/. Returns an error if a
// .geovault/ directory already exists.
func Init(path string, format object.Format) (*Repo, error) {
	vaultDir := filepath.Join(path, vaultDirName)

	if _, err := os.Stat(vaultDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", vaultDir)
	}

	dirs := []string{
		filepath.Join(vaultDir, "objects"),
		filepath.Join(vaultDir, "refs", "heads"),
		filepath.Join(vaultDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	headPath := filepath.Join(vaultDir, "HEAD")
	if err := os.WriteFile(headPath, []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	r := &Repo{
		RootDir:  path,
		VaultDir: vaultDir,
		Store:    object.NewFileStore(vaultDir, format),
	}
	// The persistence format is part of the repository and must survive
	// reopening, so it is pinned in config at creation time.
	if err := r.WriteConfig(&Config{Core: CoreConfig{Format: format.String()}}); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}

// Open searches upward from path for a .geovault/ directory and opens the
// repository, restoring the persistence format pinned in config.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		vaultDir := filepath.Join(cur, vaultDirName)
		info, err := os.Stat(vaultDir)
		if err == nil && info.IsDir() {
			return openAt(cur, vaultDir)
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a geovault repository (or any parent up to /)")
		}
		cur = parent
	}
}

func openAt(root, vaultDir string) (*Repo, error) {
	r := &Repo{RootDir: root, VaultDir: vaultDir}
	cfg, err := r.ReadConfig()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	// Init always pins core.format, so a missing key means the config was
	// damaged. Guessing a format here could read every object with the
	// wrong codec.
	if cfg.Core.Format == "" {
		return nil, fmt.Errorf("open: config is missing core.format; repository config is damaged")
	}
	format, err := object.ParseFormat(cfg.Core.Format)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	r.Store = object.NewFileStore(vaultDir, format)
	return r, nil
}
