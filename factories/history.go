package factories

import (
	"fmt"

	"voicerelay/core"
	"voicerelay/session"
	"voicerelay/storage"
)

// BuildHistoryPersister returns the persister for settings.Backend and a
// closer releasing its resources. The memory backend returns a nil persister.
func BuildHistoryPersister(settings HistorySettings, logger *core.Logger) (session.HistoryPersister, func() error, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	noop := func() error { return nil }

	switch settings.Backend {
	case HistoryBackendFile, "":
		logger.With(map[string]any{"backend": HistoryBackendFile, "path": settings.FilePath}).Info("history persistence enabled")
		return storage.NewFilePersister(settings.FilePath), noop, nil
	case HistoryBackendRedis:
		p, err := storage.NewRedisPersister(settings.Redis)
		if err != nil {
			return nil, noop, err
		}
		logger.With(map[string]any{"backend": HistoryBackendRedis, "addr": settings.Redis.Addr}).Info("history persistence enabled")
		return p, p.Close, nil
	case HistoryBackendSQLite:
		p, err := storage.NewSQLitePersister(settings.SQLite.Path)
		if err != nil {
			return nil, noop, err
		}
		logger.With(map[string]any{"backend": HistoryBackendSQLite, "path": settings.SQLite.Path}).Info("history persistence enabled")
		return p, p.Close, nil
	case HistoryBackendMemory:
		logger.Warn("history persistence disabled, conversations are lost on restart")
		return nil, noop, nil
	default:
		return nil, noop, fmt.Errorf("factories: unknown history backend %q", settings.Backend)
	}
}
