package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/quantel/ohlcvrag/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		ticker TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		summary TEXT NOT NULL,
		bars TEXT NOT NULL,
		indicators TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_ticker ON chunks(ticker);
	CREATE INDEX IF NOT EXISTS idx_chunks_ticker_start ON chunks(ticker, start_date);
	`
	_, err := db.Exec(schema)
	return err
}

const chunkColumns = `id, ticker, start_date, end_date, summary, bars, indicators, metadata, created_at`

// CreateChunk inserts or replaces a chunk. Chunk IDs are deterministic, so
// re-ingesting a ticker overwrites its windows in place.
func (s *SQLiteStorage) CreateChunk(ctx context.Context, chunk *models.Chunk) error {
	bars, indicators, metadata, err := encodeChunk(chunk)
	if err != nil {
		return err
	}
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunks (`+chunkColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ID, chunk.Ticker,
		chunk.StartDate.Format("2006-01-02"), chunk.EndDate.Format("2006-01-02"),
		chunk.Summary, bars, indicators, metadata, chunk.CreatedAt,
	)
	return err
}

// BatchCreateChunks inserts chunks in a single transaction.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (`+chunkColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, chunk := range chunks {
		bars, indicators, metadata, err := encodeChunk(chunk)
		if err != nil {
			return err
		}
		if chunk.CreatedAt.IsZero() {
			chunk.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.Ticker,
			chunk.StartDate.Format("2006-01-02"), chunk.EndDate.Format("2006-01-02"),
			chunk.Summary, bars, indicators, metadata, chunk.CreatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunk returns a chunk by ID, or models.ErrNotFound.
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", id, models.ErrNotFound)
	}
	return chunk, err
}

// ListChunksByTicker returns all chunks for a ticker ordered by start date.
func (s *SQLiteStorage) ListChunksByTicker(ctx context.Context, ticker string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE ticker = ? ORDER BY start_date`,
		strings.ToUpper(ticker),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// ListChunks returns chunks ordered by ticker then start date, with offset
// and limit.
func (s *SQLiteStorage) ListChunks(ctx context.Context, offset, limit int) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks ORDER BY ticker, start_date LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// DeleteChunksByTicker removes all chunks for a ticker.
func (s *SQLiteStorage) DeleteChunksByTicker(ctx context.Context, ticker string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE ticker = ?`, strings.ToUpper(ticker))
	return err
}

// ListTickers returns the distinct tickers with stored chunks.
func (s *SQLiteStorage) ListTickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM chunks ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func encodeChunk(chunk *models.Chunk) (bars, indicators, metadata string, err error) {
	b, err := json.Marshal(chunk.Bars)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal bars: %w", err)
	}
	i, err := json.Marshal(sanitizeIndicators(chunk.Indicators))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal indicators: %w", err)
	}
	m, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(b), string(i), string(m), nil
}

// sanitizeIndicators replaces NaN warm-up values with nulls so the JSON
// encoder accepts them. Decoding restores NaN.
func sanitizeIndicators(in map[string][]float64) map[string][]*float64 {
	if in == nil {
		return nil
	}
	out := make(map[string][]*float64, len(in))
	for name, series := range in {
		vals := make([]*float64, len(series))
		for i, v := range series {
			if !math.IsNaN(v) {
				val := v
				vals[i] = &val
			}
		}
		out[name] = vals
	}
	return out
}

func restoreIndicators(in map[string][]*float64) map[string][]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string][]float64, len(in))
	for name, series := range in {
		vals := make([]float64, len(series))
		for i, v := range series {
			if v == nil {
				vals[i] = math.NaN()
			} else {
				vals[i] = *v
			}
		}
		out[name] = vals
	}
	return out
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner) (*models.Chunk, error) {
	var chunk models.Chunk
	var start, end, bars, indicators, metadata string

	if err := row.Scan(&chunk.ID, &chunk.Ticker, &start, &end,
		&chunk.Summary, &bars, &indicators, &metadata, &chunk.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if chunk.StartDate, err = time.Parse("2006-01-02", start); err != nil {
		return nil, fmt.Errorf("failed to parse start_date: %w", err)
	}
	if chunk.EndDate, err = time.Parse("2006-01-02", end); err != nil {
		return nil, fmt.Errorf("failed to parse end_date: %w", err)
	}
	if err := json.Unmarshal([]byte(bars), &chunk.Bars); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bars: %w", err)
	}
	if indicators != "" {
		var raw map[string][]*float64
		if err := json.Unmarshal([]byte(indicators), &raw); err != nil {
			return nil, fmt.Errorf("failed to unmarshal indicators: %w", err)
		}
		chunk.Indicators = restoreIndicators(raw)
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &chunk, nil
}

func scanChunks(rows *sql.Rows) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
