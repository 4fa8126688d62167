package document

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"pdfrag/internal/rag"
)

type Repository interface {
	Save(ctx context.Context, chunks []rag.Chunk) error
	ListByFilename(ctx context.Context, filename string) ([]Record, error)
	Count(ctx context.Context) (int, error)
}

// SQLRepo stores chunk rows in postgres or sqlite3. Both drivers accept $n placeholders.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

// Save inserts every chunk in one transaction. Any failed row rolls back the whole batch.
// Rows are append-only: saving the same chunk ids again adds new rows.
func (r *SQLRepo) Save(ctx context.Context, chunks []rag.Chunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", rag.ErrMetadataPersistence, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.WarnContext(ctx, "failed to roll back chunk insert", "error", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (chunk_id, text, filename) VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %v", rag.ErrMetadataPersistence, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err = stmt.ExecContext(ctx, c.ID, c.Text, c.Filename); err != nil {
			return fmt.Errorf("%w: insert %s: %v", rag.ErrMetadataPersistence, c.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", rag.ErrMetadataPersistence, err)
	}
	return nil
}

func (r *SQLRepo) ListByFilename(ctx context.Context, filename string) ([]Record, error) {
	query := `SELECT id, chunk_id, text, filename, created_at FROM chunks WHERE filename = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, filename)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.ChunkID, &rec.Text, &rec.Filename, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *SQLRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM chunks`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
