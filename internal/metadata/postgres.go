package metadata

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/AIAleph/mvp_market_context/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	findDocumentSQL = `SELECT body FROM metadata_documents WHERE collection = $1 AND doc_key = $2`
	// jsonb || merges top-level keys, matching $set semantics.
	upsertDocumentSQL = `INSERT INTO metadata_documents (collection, doc_key, body)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, doc_key)
DO UPDATE SET body = metadata_documents.body || EXCLUDED.body, updated_at = now()`
)

// Postgres keeps documents as jsonb rows keyed by collection and filter.
type Postgres struct {
	db *sqlx.DB
}

// OpenPostgres connects, pings and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("metadata: empty postgres dsn")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := runMigrations(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func migrationSource() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{FileSystem: migrationFS, Root: "migrations"}
}

func runMigrations(db *sql.DB) error {
	n, err := migrate.Exec(db, "postgres", migrationSource(), migrate.Up)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logging.Logger().Info("metadata_migrations", "component", "metadata.postgres", "applied", n)
	return nil
}

func (p *Postgres) Find(ctx context.Context, collection string, filter Filter) (Document, bool, error) {
	var body []byte
	err := p.db.GetContext(ctx, &body, findDocumentSQL, collection, filterKey(filter))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres find %s: %w", collection, err)
	}
	var d Document
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, false, fmt.Errorf("postgres decode %s: %w", collection, err)
	}
	return d, true, nil
}

func (p *Postgres) Upsert(ctx context.Context, collection string, filter Filter, fields Document) error {
	doc := make(Document, len(filter)+len(fields))
	for k, v := range filter {
		doc[k] = v
	}
	for k, v := range fields {
		doc[k] = v
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("postgres encode %s: %w", collection, err)
	}
	if _, err := p.db.ExecContext(ctx, upsertDocumentSQL, collection, filterKey(filter), string(body)); err != nil {
		return fmt.Errorf("postgres upsert %s: %w", collection, err)
	}
	return nil
}

func (p *Postgres) Close(context.Context) error { return p.db.Close() }
