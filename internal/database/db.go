package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/safar/stockbill/internal/config"
)

const (
	connectAttempts = 5
	pingTimeout     = 5 * time.Second
)

// NewConnection opens the pool and waits for the server to answer, backing off
// between attempts so the service can start alongside its database.
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig, log logrus.FieldLogger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitForDatabase(ctx, db, log); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func waitForDatabase(ctx context.Context, db *sql.DB, log logrus.FieldLogger) error {
	backoff := 250 * time.Millisecond

	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == connectAttempts {
			break
		}

		log.WithError(err).WithField("attempt", attempt).Warn("database not ready, retrying")
		if sleepErr := sleepWithJitter(ctx, backoff); sleepErr != nil {
			return sleepErr
		}
		backoff *= 2
	}

	return fmt.Errorf("ping database after %d attempts: %w", connectAttempts, err)
}
