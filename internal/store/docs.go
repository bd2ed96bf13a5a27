package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		seq BIGSERIAL,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_collection_seq_idx ON documents (collection, seq)`,
	`CREATE INDEX IF NOT EXISTS documents_body_idx ON documents USING GIN (body jsonb_path_ops)`,
}

// DocBackend is a remote document collection: every kind shares one JSONB
// table and is addressed by a server-side id.
type DocBackend struct {
	db *sql.DB
}

func NewDocBackend(db *sql.DB) *DocBackend {
	return &DocBackend{db: db}
}

// Migrate creates the documents table when missing.
func (b *DocBackend) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (b *DocBackend) List(ctx context.Context, kind Kind, q Query) ([]Doc, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, body FROM documents WHERE collection = $1`)
	args := []any{string(kind)}
	for _, f := range q.Filters {
		if !fieldName.MatchString(f.Field) {
			return nil, fmt.Errorf("invalid filter field %q", f.Field)
		}
		args = append(args, f.Field, f.Value)
		sb.WriteString(" AND body->>($" + strconv.Itoa(len(args)-1) + "::text) = $" + strconv.Itoa(len(args)))
	}
	if q.OrderBy != "" {
		if !fieldName.MatchString(q.OrderBy) {
			return nil, fmt.Errorf("invalid order field %q", q.OrderBy)
		}
		args = append(args, q.OrderBy)
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		sb.WriteString(" ORDER BY body->>($" + strconv.Itoa(len(args)) + "::text) " + dir + ", seq ASC")
	} else {
		sb.WriteString(" ORDER BY seq ASC")
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	rows, err := b.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Doc
	for rows.Next() {
		var d Doc
		var body []byte
		if err := rows.Scan(&d.ID, &body); err != nil {
			return nil, err
		}
		d.Body = json.RawMessage(body)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (b *DocBackend) Create(ctx context.Context, kind Kind, body json.RawMessage) (Doc, error) {
	id := uuid.NewString()
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)`,
		string(kind), id, string(body))
	if err != nil {
		return Doc{}, err
	}
	return Doc{ID: id, Body: body}, nil
}

func (b *DocBackend) Update(ctx context.Context, kind Kind, id string, patch map[string]any) error {
	raw, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	res, err := b.db.ExecContext(ctx,
		`UPDATE documents SET body = body || $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2`,
		string(kind), id, string(raw))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *DocBackend) Delete(ctx context.Context, kind Kind, id string) error {
	_, err := b.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, string(kind), id)
	return err
}
