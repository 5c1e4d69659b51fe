package db

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"graph-mailer/internal/models"

	"github.com/lib/pq" // also registers the postgres driver
	"github.com/pkg/errors"
)

// OutcomeTable stores one row per mailer run.
const OutcomeTable = "mail_log"

// Client handles database operations.
type Client struct {
	db *sql.DB
}

// NewClient opens and pings the database.
func NewClient(driverName, dataSourceName string) (*Client, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database connection with driver '%s'", driverName)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Create inserts a single record into a table based on a struct. Columns are
// taken from the json tags; the id column is left to the database and slice
// fields are stored as Postgres arrays.
func (c *Client) Create(ctx context.Context, tableName string, model interface{}) (int64, error) {
	query, values, err := buildInsert(tableName, model)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := c.db.QueryRowContext(ctx, query, values...).Scan(&id); err != nil {
		return 0, errors.Wrapf(err, "failed to create record in table '%s'", tableName)
	}
	return id, nil
}

func buildInsert(tableName string, model interface{}) (string, []interface{}, error) {
	v := reflect.ValueOf(model)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return "", nil, fmt.Errorf("expected a struct, but got %T", model)
	}

	var cols, placeholders []string
	var values []interface{}

	for i := 0; i < v.NumField(); i++ {
		field := v.Type().Field(i)
		tag := field.Tag.Get("json")
		if tag == "id" || tag == "" || tag == "-" || strings.HasSuffix(tag, ",omitempty") {
			continue
		}

		value := v.Field(i).Interface()
		if v.Field(i).Kind() == reflect.Slice {
			value = pq.Array(value)
		}

		cols = append(cols, tag)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(cols)))
		values = append(values, value)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		tableName,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
	)
	return query, values, nil
}

// RecordOutcome writes the outcome of one run to the send log.
func (c *Client) RecordOutcome(ctx context.Context, outcome models.SendOutcome) error {
	_, err := c.Create(ctx, OutcomeTable, outcome)
	return err
}

// RecentOutcomes returns up to limit outcomes, newest first.
func (c *Client) RecentOutcomes(ctx context.Context, limit int) ([]models.SendOutcome, error) {
	const query = `
    SELECT id, sender, recipients, cc_recipients, bcc_recipients, subject, auth_mode,
           status, status_code, error_message, attachments, skipped_attachments, created_at
    FROM mail_log
    ORDER BY created_at DESC
    LIMIT $1`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query send log")
	}
	defer rows.Close()

	var outcomes []models.SendOutcome
	for rows.Next() {
		var o models.SendOutcome
		if err := rows.Scan(
			&o.ID, &o.Sender,
			pq.Array(&o.Recipients), pq.Array(&o.CcRecipients), pq.Array(&o.BccRecipients),
			&o.Subject, &o.AuthMode, &o.Status, &o.StatusCode, &o.ErrorMessage,
			&o.Attachments, &o.SkippedAttachments, &o.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan send log row")
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
