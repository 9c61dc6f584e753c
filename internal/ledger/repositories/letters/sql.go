package letters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/sealpost/internal/common"
	"github.com/dmitrijs2005/sealpost/internal/dbx"
	"github.com/dmitrijs2005/sealpost/internal/ledger/models"
)

const letterColumns = `id, title, sender, content, content_identity, delivery_time_ms, is_public,
		attach_blob_id, attach_identity, file_name, created_at_ms`

type placeholder int

const (
	question placeholder = iota
	dollar
)

// sqlRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type sqlRepository struct {
	db dbx.DBTX
	ph placeholder
}

// NewPostgresRepository binds a repository using $n placeholders.
func NewPostgresRepository(db dbx.DBTX) Repository {
	return &sqlRepository{db: db, ph: dollar}
}

// NewSQLiteRepository binds a repository using ? placeholders.
func NewSQLiteRepository(db dbx.DBTX) Repository {
	return &sqlRepository{db: db, ph: question}
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func (r *sqlRepository) rebind(query string) string {
	if r.ph == question {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *sqlRepository) Create(ctx context.Context, l *models.Letter) (uint64, error) {
	query := r.rebind(`
		INSERT INTO letters (title, sender, content, content_identity, delivery_time_ms, is_public,
			attach_blob_id, attach_identity, file_name, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		l.Title, l.Sender, l.Content, l.ContentIdentity, l.DeliveryTimeMs, l.IsPublic,
		l.AttachBlobID, l.AttachIdentity, l.FileName, l.CreatedAtMs,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return uint64(id), nil
}

func (r *sqlRepository) AddRecipients(ctx context.Context, letterID uint64, recipients []string) error {
	query := r.rebind(`INSERT INTO letter_recipients (letter_id, position, recipient) VALUES (?, ?, ?)`)
	for i, rcpt := range recipients {
		if _, err := r.db.ExecContext(ctx, query, int64(letterID), i, rcpt); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *sqlRepository) Get(ctx context.Context, id uint64) (*models.Letter, error) {
	query := r.rebind(`SELECT ` + letterColumns + ` FROM letters WHERE id = ?`)

	l, err := scanLetter(r.db.QueryRowContext(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if l.Recipients, err = r.recipients(ctx, l.ID); err != nil {
		return nil, err
	}
	return l, nil
}

func (r *sqlRepository) ListBySender(ctx context.Context, sender string) ([]*models.Letter, error) {
	query := r.rebind(`SELECT ` + letterColumns + ` FROM letters WHERE sender = ? ORDER BY id DESC`)
	return r.list(ctx, query, sender)
}

func (r *sqlRepository) ListByRecipient(ctx context.Context, recipient string) ([]*models.Letter, error) {
	query := r.rebind(`SELECT ` + letterColumns + ` FROM letters
		WHERE id IN (SELECT letter_id FROM letter_recipients WHERE recipient = ?)
		ORDER BY id DESC`)
	return r.list(ctx, query, recipient)
}

func (r *sqlRepository) list(ctx context.Context, query string, arg any) ([]*models.Letter, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to select letters: %w", err)
	}

	var result []*models.Letter
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, l := range result {
		if l.Recipients, err = r.recipients(ctx, l.ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *sqlRepository) recipients(ctx context.Context, letterID uint64) ([]string, error) {
	query := r.rebind(`SELECT recipient FROM letter_recipients WHERE letter_id = ? ORDER BY position`)
	rows, err := r.db.QueryContext(ctx, query, int64(letterID))
	if err != nil {
		return nil, fmt.Errorf("failed to select recipients: %w", err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var rcpt string
		if err := rows.Scan(&rcpt); err != nil {
			return nil, err
		}
		result = append(result, rcpt)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLetter(s scanner) (*models.Letter, error) {
	var (
		l  models.Letter
		id int64
	)
	err := s.Scan(&id, &l.Title, &l.Sender, &l.Content, &l.ContentIdentity, &l.DeliveryTimeMs, &l.IsPublic,
		&l.AttachBlobID, &l.AttachIdentity, &l.FileName, &l.CreatedAtMs)
	if err != nil {
		return nil, err
	}
	l.ID = uint64(id)
	return &l, nil
}
