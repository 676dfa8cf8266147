package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// Entry is one audited analysis. It never feeds back into results.
type Entry struct {
	ID          int64
	CreatedAt   time.Time
	RequestID   string
	Source      string // http | telegram | cli
	Filename    string
	ContentType string
	SizeBytes   int64
	ImageHash   string
	Engine      string
	Model       string
	Outcome     string
	Category    string
	Duration    time.Duration
	Error       string
}

type Journal struct{ DB *sql.DB }

func NewJournal(db *sql.DB) *Journal { return &Journal{DB: db} }

// Open connects through the pgx stdlib driver and pings the database.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(1 * time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	const q = `
create table if not exists analysis_journal (
  id           bigserial primary key,
  created_at   timestamptz not null default now(),
  request_id   text not null,
  source       text not null,
  filename     text,
  content_type text,
  size_bytes   bigint not null default 0,
  image_hash   text,
  engine       text,
  model        text,
  outcome      text not null,
  category     text,
  duration_ms  bigint not null default 0,
  error        text
)`
	const idx = `create index if not exists analysis_journal_created_at_idx on analysis_journal (created_at desc)`
	for _, stmt := range []string{q, idx} {
		if _, err := j.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure analysis_journal: %w", err)
		}
	}
	return nil
}

func (j *Journal) Record(ctx context.Context, e Entry) error {
	const q = `
insert into analysis_journal (
  request_id, source, filename, content_type, size_bytes,
  image_hash, engine, model, outcome, category, duration_ms, error
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := j.DB.ExecContext(ctx, q,
		e.RequestID, e.Source, nullable(e.Filename), nullable(e.ContentType), e.SizeBytes,
		nullable(e.ImageHash), nullable(e.Engine), nullable(e.Model), e.Outcome,
		nullable(e.Category), e.Duration.Milliseconds(), nullable(e.Error),
	)
	if err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
select id, created_at, request_id, source,
       coalesce(filename,''), coalesce(content_type,''), size_bytes,
       coalesce(image_hash,''), coalesce(engine,''), coalesce(model,''),
       outcome, coalesce(category,''), duration_ms, coalesce(error,'')
from analysis_journal
order by created_at desc
limit $1`
	rows, err := j.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.RequestID, &e.Source,
			&e.Filename, &e.ContentType, &e.SizeBytes,
			&e.ImageHash, &e.Engine, &e.Model,
			&e.Outcome, &e.Category, &ms, &e.Error); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes old entries so the table does not grow unbounded.
func (j *Journal) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from analysis_journal where created_at < $1`
	res, err := j.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
