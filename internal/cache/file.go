package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "caresync/pkg/logx"
)

// fileCache is a dependency-free persistence backend.
//
// Each key maps to one file under the root directory. Writes go through a
// temp file + rename so a crash mid-write never leaves a torn value behind.
type fileCache struct {
	log  logx.Logger
	root string

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Cache, error) {
	root := strings.TrimSpace(cfg.Path)
	if root == "" {
		return nil, errors.New("cache.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &fileCache{log: log, root: root}, nil
}

func (c *fileCache) Close() error { return nil }

func (c *fileCache) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(b), true, nil
}

func (c *fileCache) Set(ctx context.Context, key, value string) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.pathFor(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (c *fileCache) Remove(ctx context.Context, key string) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.pathFor(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// pathFor encodes the key so arbitrary user ids can't escape the root dir.
func (c *fileCache) pathFor(key string) string {
	safe := sanitizeKey(key)
	return filepath.Join(c.root, safe+".json")
}

func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteString("x" + hex.EncodeToString([]byte(string(r))))
		}
	}
	return b.String()
}
