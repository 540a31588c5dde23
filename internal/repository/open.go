package repository

import (
	"fmt"

	"github.com/ivanoskov/finchat_bot/internal/config"
)

// Open создает хранилище по настройкам. Возвращаемая функция освобождает его ресурсы.
func Open(cfg *config.Config) (Repository, func() error, error) {
	switch cfg.StorageDriver {
	case config.DriverSupabase:
		r, err := NewSupabaseRepository(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to supabase: %w", err)
		}
		return r, func() error { return nil }, nil
	case config.DriverSQLite:
		r, err := NewSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
