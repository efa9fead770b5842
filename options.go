package sqlitereader

import "github.com/sirupsen/logrus"

// config holds the resolved settings for an Open call, built up by
// applying OpenOptions over sane defaults (spec's ambient
// configuration layer, modeled on the teacher's functional-options
// DatabaseConfig).
type config struct {
	pageCacheSize int
	rowScanCap    int
	rowErrorCap   int
	memoryMap     bool
	logger        logrus.FieldLogger
}

func defaultConfig() *config {
	return &config{
		pageCacheSize: 2048,
		rowScanCap:    1_000_000,
		rowErrorCap:   100,
		memoryMap:     false,
		logger:        logrus.New(),
	}
}

// OpenOption configures a Database at Open time.
type OpenOption func(*config)

// WithPageCacheSize sets the page cache's capacity in pages. Default 2048.
func WithPageCacheSize(n int) OpenOption {
	return func(c *config) { c.pageCacheSize = n }
}

// WithLogger installs a structured logger used for bounded-recovery
// warnings (spec §7 tier 2). Default is a standalone logrus.Logger.
func WithLogger(log logrus.FieldLogger) OpenOption {
	return func(c *config) { c.logger = log }
}

// WithRowScanCap bounds the number of rows a single full scan
// materializes. Default 1,000,000.
func WithRowScanCap(n int) OpenOption {
	return func(c *config) { c.rowScanCap = n }
}

// WithRowErrorCap bounds the number of per-row decode errors a single
// full scan tolerates before terminating early. Default 100.
func WithRowErrorCap(n int) OpenOption {
	return func(c *config) { c.rowErrorCap = n }
}

// WithMemoryMap requests that the backing file be accessed via a
// memory map instead of positioned reads, where available.
func WithMemoryMap(enabled bool) OpenOption {
	return func(c *config) { c.memoryMap = enabled }
}
