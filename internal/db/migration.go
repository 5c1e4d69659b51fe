package db

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Migrate makes sure the send log table and its index exist.
func (c *Client) Migrate(ctx context.Context, logger *zap.Logger) error {
	const createMailLogTableSQL = `
    CREATE TABLE IF NOT EXISTS mail_log (
        id SERIAL PRIMARY KEY,
        sender TEXT NOT NULL,
        recipients TEXT[],
        cc_recipients TEXT[],
        bcc_recipients TEXT[],
        subject TEXT,
        auth_mode TEXT,
        status TEXT NOT NULL,
        status_code INTEGER,
        error_message TEXT,
        attachments INTEGER,
        skipped_attachments INTEGER,
        created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`

	if _, err := c.db.ExecContext(ctx, createMailLogTableSQL); err != nil {
		return errors.Wrap(err, "failed to create table 'mail_log'")
	}
	logger.Info("table 'mail_log' is ready")

	// Listing reads newest first.
	const createIndexSQL = `CREATE INDEX IF NOT EXISTS idx_mail_log_created_at ON mail_log(created_at DESC);`
	if _, err := c.db.ExecContext(ctx, createIndexSQL); err != nil {
		logger.Warn("failed to create index on 'mail_log'", zap.Error(err))
	}

	logger.Info("database migration checked/completed")
	return nil
}
