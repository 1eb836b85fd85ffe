package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/finsum/internal/models"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStorage implements SectionStore using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	inMemory := dbPath == MemoryPath
	if dir := filepath.Dir(dbPath); !inMemory && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
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
	CREATE TABLE IF NOT EXISTS filings (
		ticker TEXT PRIMARY KEY,
		accession TEXT,
		filing_date TEXT,
		sec_url TEXT,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sections (
		ticker TEXT NOT NULL,
		item TEXT NOT NULL,
		title TEXT,
		content TEXT NOT NULL,
		char_count INTEGER NOT NULL,
		word_count INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (ticker, item)
	);

	CREATE INDEX IF NOT EXISTS idx_sections_ticker ON sections(ticker);
	`
	_, err := db.Exec(schema)
	return err
}

const upsertFiling = `INSERT INTO filings (ticker, accession, filing_date, sec_url, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(ticker) DO UPDATE SET
		accession = excluded.accession,
		filing_date = excluded.filing_date,
		sec_url = excluded.sec_url,
		updated_at = excluded.updated_at`

const upsertSection = `INSERT INTO sections (ticker, item, title, content, char_count, word_count, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(ticker, item) DO UPDATE SET
		title = excluded.title,
		content = excluded.content,
		char_count = excluded.char_count,
		word_count = excluded.word_count,
		updated_at = excluded.updated_at`

// SaveFiling upserts the filing row and all of its sections in one transaction.
func (s *SQLiteStorage) SaveFiling(ctx context.Context, filing *models.Filing) error {
	ticker := strings.ToUpper(filing.Ticker)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx, upsertFiling, ticker, filing.Accession, filing.FilingDate, filing.SECURL, now); err != nil {
		return fmt.Errorf("failed to save filing %s: %w", ticker, err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertSection)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, sec := range filing.Sections {
		if _, err := stmt.ExecContext(ctx, ticker, sec.Item, sec.Title, sec.Content, sec.CharCount, sec.WordCount, now); err != nil {
			return fmt.Errorf("failed to save section %s/%s: %w", ticker, sec.Item, err)
		}
	}
	return tx.Commit()
}

// SaveSection upserts one section, creating a bare filing row for ticker when needed.
func (s *SQLiteStorage) SaveSection(ctx context.Context, ticker string, section *models.Section) error {
	ticker = strings.ToUpper(ticker)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO filings (ticker, updated_at) VALUES (?, ?)
		 ON CONFLICT(ticker) DO UPDATE SET updated_at = excluded.updated_at`,
		ticker, now,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, upsertSection,
		ticker, section.Item, section.Title, section.Content, section.CharCount, section.WordCount, now,
	); err != nil {
		return fmt.Errorf("failed to save section %s/%s: %w", ticker, section.Item, err)
	}
	return tx.Commit()
}

// GetSection returns one section. item may be in any form models.NormalizeItem accepts.
func (s *SQLiteStorage) GetSection(ctx context.Context, ticker, item string) (*models.Section, error) {
	ticker = strings.ToUpper(ticker)
	item = models.NormalizeItem(item)
	var sec models.Section
	err := s.db.QueryRowContext(ctx,
		`SELECT item, title, content, char_count, word_count
		 FROM sections WHERE ticker = ? AND item = ?`, ticker, item,
	).Scan(&sec.Item, &sec.Title, &sec.Content, &sec.CharCount, &sec.WordCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("section %s/%s: %w", ticker, item, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

// GetFiling returns the filing with all stored sections.
func (s *SQLiteStorage) GetFiling(ctx context.Context, ticker string) (*models.Filing, error) {
	ticker = strings.ToUpper(ticker)
	filing := models.NewFiling(ticker)
	var accession, filingDate, secURL sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT accession, filing_date, sec_url FROM filings WHERE ticker = ?`, ticker,
	).Scan(&accession, &filingDate, &secURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("filing %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	filing.Accession = accession.String
	filing.FilingDate = filingDate.String
	filing.SECURL = secURL.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT item, title, content, char_count, word_count
		 FROM sections WHERE ticker = ? ORDER BY item`, ticker,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sec models.Section
		if err := rows.Scan(&sec.Item, &sec.Title, &sec.Content, &sec.CharCount, &sec.WordCount); err != nil {
			return nil, err
		}
		filing.AddSection(&sec)
	}
	return filing, rows.Err()
}

// DeleteFiling removes the filing and its sections.
func (s *SQLiteStorage) DeleteFiling(ctx context.Context, ticker string) error {
	ticker = strings.ToUpper(ticker)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE ticker = ?`, ticker); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM filings WHERE ticker = ?`, ticker)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("filing %s: %w", ticker, ErrNotFound)
	}
	return tx.Commit()
}

// ListTickers returns all stored tickers, sorted.
func (s *SQLiteStorage) ListTickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker FROM filings ORDER BY ticker`)
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

// ListSections returns section summaries for ticker, or for every ticker when ticker is empty.
func (s *SQLiteStorage) ListSections(ctx context.Context, ticker string) ([]SectionInfo, error) {
	query := `SELECT ticker, item, title, char_count, word_count, updated_at FROM sections`
	var args []interface{}
	if ticker != "" {
		query += ` WHERE ticker = ?`
		args = append(args, strings.ToUpper(ticker))
	}
	query += ` ORDER BY ticker, item`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []SectionInfo
	for rows.Next() {
		var info SectionInfo
		var title sql.NullString
		if err := rows.Scan(&info.Ticker, &info.Item, &title, &info.CharCount, &info.WordCount, &info.UpdatedAt); err != nil {
			return nil, err
		}
		info.Title = title.String
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// CountSections returns the total number of stored sections.
func (s *SQLiteStorage) CountSections(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sections`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
