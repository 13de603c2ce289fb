package linker

import (
	"path/filepath"

	"go.uber.org/zap"
	"ragchain/config"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

// New builds the linker selected by cfg.Backend. dataDir anchors the default
// bolt file location.
func New(cfg config.LinkerConfig, dataDir string, logger *zap.Logger) (port.Linker, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisLinker(RedisOptions{
			Host:        cfg.Host,
			Port:        cfg.Port,
			DB:          cfg.DB,
			Password:    cfg.Password,
			JSONModule:  cfg.JSONModule,
			DialTimeout: cfg.DialTimeout,
			ReadTimeout: cfg.ReadTimeout,
			PoolSize:    cfg.PoolSize,
		}, logger)
	case "bolt", "":
		path := cfg.Path
		if path == "" {
			if err := config.EnsureDataDir(dataDir); err != nil {
				return nil, err
			}
			path = config.LinkerDBPath(dataDir)
		} else if !filepath.IsAbs(path) {
			path = filepath.Join(dataDir, path)
		}
		return NewBoltLinker(path, logger)
	case "memory":
		return NewMemoryLinker(logger), nil
	default:
		return nil, domain.Configurationf("unknown linker backend %q", cfg.Backend)
	}
}
