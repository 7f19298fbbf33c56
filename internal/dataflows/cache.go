package dataflows

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/irwinlee/tradecouncil/internal/models"
)

// diskCache memoizes analyst context under data_cache_dir, keyed by analyst
// kind, symbol and analysis date. Both lookups are best-effort: a cache that
// cannot be read or written degrades to a live fetch, never to an error.
type diskCache struct {
	dir string
}

func newDiskCache(dir string) *diskCache {
	return &diskCache{dir: dir}
}

func (c *diskCache) get(kind models.AnalystKind, symbol string, asOf time.Time) (string, bool) {
	if c == nil {
		return "", false
	}
	data, err := os.ReadFile(c.path(kind, symbol, asOf))
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (c *diskCache) put(kind models.AnalystKind, symbol string, asOf time.Time, text string) {
	if c == nil || text == "" {
		return
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return
	}
	_ = os.WriteFile(c.path(kind, symbol, asOf), []byte(text), 0o644)
}

func (c *diskCache) path(kind models.AnalystKind, symbol string, asOf time.Time) string {
	// Crypto pairs carry a slash; keep filenames flat.
	sym := strings.ReplaceAll(symbol, "/", "-")
	name := fmt.Sprintf("%s_%s_%s.txt",
		strings.ToLower(string(kind)), sym, asOf.Format("2006-01-02"))
	return filepath.Join(c.dir, name)
}
