package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/soaringjerry/surveyd/internal/config"
	"github.com/soaringjerry/surveyd/internal/db"
	"github.com/soaringjerry/surveyd/internal/jobs"
	"github.com/soaringjerry/surveyd/internal/services"
)

// backend is everything main needs from a store.
type backend interface {
	services.Store
	jobs.OrphanStore
}

type openedStore struct {
	backend
	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*openedStore, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &openedStore{
			backend: db.NewMemoryStore(),
			close:   func(context.Context) error { return nil },
		}, nil
	case config.DriverMongo:
		ms, err := db.OpenMongoStore(ctx, cfg.DSN, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		return &openedStore{backend: ms, ping: ms.Ping, close: ms.Close}, nil
	}

	dialect := db.Dialect(cfg.Driver)
	dsn := cfg.DSN
	if dialect == db.DialectSQLite {
		var err error
		if dsn, err = sqliteDSN(dsn); err != nil {
			return nil, err
		}
	}
	sqlDB, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	tunePool(sqlDB, dialect, cfg.MaxOpenConns)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := db.RunMigrations(ctx, sqlDB, dialect, cfg.MigrationsDir); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	st, err := db.NewSQLStore(ctx, sqlDB, dialect, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	logger.Info("store ready", "driver", dialect)
	return &openedStore{
		backend: st,
		ping:    st.Ping,
		close:   func(context.Context) error { return st.Close() },
	}, nil
}

// sqliteDSN turns a plain file path into a DSN and creates its directory.
func sqliteDSN(path string) (string, error) {
	if strings.HasPrefix(path, "file:") || path == ":memory:" {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create sqlite dir: %w", err)
	}
	return fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", filepath.ToSlash(path)), nil
}

func tunePool(sqlDB *sql.DB, dialect db.Dialect, maxOpen int) {
	if dialect == db.DialectSQLite {
		// one writer at a time; WAL keeps readers unblocked
		sqlDB.SetMaxOpenConns(1)
		return
	}
	if maxOpen <= 0 {
		maxOpen = 10
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen / 2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)
}
