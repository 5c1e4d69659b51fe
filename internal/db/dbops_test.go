package db

import (
	"testing"
	"time"

	"graph-mailer/internal/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInsertOutcome(t *testing.T) {
	created := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	outcome := models.SendOutcome{
		ID:         99,
		Sender:     "s@x.com",
		Recipients: []string{"a@x.com", "b@x.com"},
		Subject:    "Hi",
		AuthMode:   "clientSecret",
		Status:     models.StatusAccepted,
		StatusCode: 202,
		CreatedAt:  created,
	}

	query, values, err := buildInsert(OutcomeTable, &outcome)
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO mail_log (sender, recipients, cc_recipients, bcc_recipients, subject, auth_mode, status, "+
			"status_code, error_message, attachments, skipped_attachments, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id",
		query)
	require.Len(t, values, 12)
	assert.Equal(t, "s@x.com", values[0])
	assert.IsType(t, &pq.StringArray{}, values[1])
	assert.Equal(t, pq.StringArray{"a@x.com", "b@x.com"}, *values[1].(*pq.StringArray))
	assert.Equal(t, 202, values[7])
	assert.Equal(t, created, values[11])
}

func TestBuildInsertRejectsNonStruct(t *testing.T) {
	_, _, err := buildInsert(OutcomeTable, "nope")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "")
	_, err := Load()
	assert.Equal(t, ErrNotConfigured, err)

	t.Setenv("DB_DSN", "postgres://localhost/mail?sslmode=disable")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Driver)

	t.Setenv("DB_DSN", "")
	t.Setenv("DB_DRIVER", "postgres")
	_, err = Load()
	assert.Error(t, err)
	assert.NotEqual(t, ErrNotConfigured, err)
}
