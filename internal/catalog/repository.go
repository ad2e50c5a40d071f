package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/kritika/internal/contracts"
)

// ErrNoSnapshot is returned when no snapshot was ever saved
var ErrNoSnapshot = errors.New("no catalog snapshot")

// Snapshot is one persisted copy of the stock list
type Snapshot struct {
	ID      int64                   `json:"id"`
	TakenAt time.Time               `json:"taken_at"`
	Count   int                     `json:"count"`
	Records []contracts.StockRecord `json:"records"`
}

// Repository stores catalog snapshots in Postgres
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// records is JSON, not JSONB: JSONB would reorder the sheet's keys
const schemaSQL = `
	CREATE TABLE IF NOT EXISTS catalog_snapshots (
		id           BIGSERIAL PRIMARY KEY,
		taken_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		record_count INTEGER NOT NULL,
		records      JSON NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_catalog_snapshots_taken_at
		ON catalog_snapshots (taken_at DESC);
`

// EnsureSchema creates the snapshot table if missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}
	return nil
}

// SaveSnapshot inserts a new snapshot of records
func (r *Repository) SaveSnapshot(ctx context.Context, records []contracts.StockRecord) (*Snapshot, error) {
	if records == nil {
		records = []contracts.StockRecord{}
	}

	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal records: %w", err)
	}

	query := `
		INSERT INTO catalog_snapshots (record_count, records)
		VALUES ($1, $2)
		RETURNING id, taken_at
	`

	snap := &Snapshot{Count: len(records), Records: records}
	err = r.db.QueryRow(ctx, query, len(records), json.RawMessage(recordsJSON)).Scan(&snap.ID, &snap.TakenAt)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	return snap, nil
}

// LatestSnapshot retrieves the most recent snapshot
func (r *Repository) LatestSnapshot(ctx context.Context) (*Snapshot, error) {
	query := `
		SELECT id, taken_at, record_count, records
		FROM catalog_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`

	snap := &Snapshot{}
	var recordsJSON []byte
	err := r.db.QueryRow(ctx, query).Scan(&snap.ID, &snap.TakenAt, &snap.Count, &recordsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}

	if err := json.Unmarshal(recordsJSON, &snap.Records); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}

	return snap, nil
}

// Prune keeps the newest keep snapshots and deletes the rest
func (r *Repository) Prune(ctx context.Context, keep int) (int64, error) {
	query := `
		DELETE FROM catalog_snapshots
		WHERE id NOT IN (
			SELECT id FROM catalog_snapshots
			ORDER BY taken_at DESC, id DESC
			LIMIT $1
		)
	`

	tag, err := r.db.Exec(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
