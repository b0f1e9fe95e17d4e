package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoCatalogue is returned when a database holds no archive_info row.
var ErrNoCatalogue = errors.New("database holds no catalogue")

// Database is a connection to a catalogue SQLite database
type Database struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// Options configures how a catalogue database is opened
type Options struct {
	// Path to the SQLite database file
	Path string

	// ReadOnly opens an existing catalogue for querying. The file must
	// exist; nothing is created and writes fail.
	ReadOnly bool

	// WALMode enables write-ahead logging. Ignored when ReadOnly is set.
	WALMode bool

	ForeignKeys bool

	// BusyTimeout bounds how long a statement waits on a locked database
	BusyTimeout time.Duration

	// CacheSize is the page cache in KiB, 0 for SQLite's default
	CacheSize int
}

// DefaultOptions returns options for writing a catalogue at path
func DefaultOptions(path string) *Options {
	return &Options{
		Path:        path,
		WALMode:     true,
		ForeignKeys: true,
		BusyTimeout: 30 * time.Second,
		CacheSize:   40 * 1024,
	}
}

// QueryOptions returns options for reading an existing catalogue at path
func QueryOptions(path string) *Options {
	return &Options{
		Path:        path,
		ReadOnly:    true,
		BusyTimeout: 5 * time.Second,
	}
}

// Open connects to the catalogue database described by options
func Open(options *Options) (*Database, error) {
	if options == nil {
		return nil, fmt.Errorf("database options cannot be nil")
	}
	if options.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if options.ReadOnly {
		if _, err := os.Stat(options.Path); err != nil {
			return nil, fmt.Errorf("opening catalogue %s: %w", options.Path, err)
		}
	} else if err := ensureDirectory(options.Path); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dataSourceName(options))
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", options.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("testing database connection: %w", err)
	}

	return &Database{db: db, path: options.Path, readOnly: options.ReadOnly}, nil
}

// Path returns the database file
func (d *Database) Path() string { return d.path }

// ReadOnly reports whether the database was opened for querying only
func (d *Database) ReadOnly() bool { return d.readOnly }

// Close closes the database connection
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}

	err := d.db.Close()
	d.db = nil
	if err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

func (d *Database) conn() (*sql.DB, error) {
	if d.db == nil {
		return nil, fmt.Errorf("database connection is closed")
	}
	return d.db, nil
}

// BeginTx starts a new transaction with the given options
func (d *Database) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}

// Exec executes a SQL statement that doesn't return rows
func (d *Database) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

// Query executes a SQL query that returns rows
func (d *Database) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db, err := d.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return rows, nil
}

// QueryRow executes a SQL query that is expected to return at most one row
func (d *Database) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// Tables lists the tables in the database, SQLite's own excluded
func (d *Database) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.Query(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// HasUserTables reports whether the database holds any tables besides
// SQLite's own
func (d *Database) HasUserTables(ctx context.Context) (bool, error) {
	names, err := d.Tables(ctx)
	if err != nil {
		return false, fmt.Errorf("checking for user tables: %w", err)
	}
	return len(names) > 0, nil
}

// CatalogueInfo is the archive_info row of a written catalogue
type CatalogueInfo struct {
	Title        string
	Major        int
	Minor        int
	Bytecode     int
	MissingAudio bool
	CreatedAt    time.Time
}

// CatalogueInfo reads which archive the catalogue was written from. It
// returns ErrNoCatalogue for a database the catalogue command never wrote.
func (d *Database) CatalogueInfo(ctx context.Context) (*CatalogueInfo, error) {
	if _, err := d.conn(); err != nil {
		return nil, err
	}

	var exists int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'archive_info'`).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking for catalogue: %w", err)
	}
	if exists == 0 {
		return nil, ErrNoCatalogue
	}

	var (
		info    CatalogueInfo
		created string
	)
	err := d.QueryRow(ctx, `SELECT title, major, minor, bytecode, missing_audio, created_at FROM archive_info ORDER BY _index LIMIT 1`).
		Scan(&info.Title, &info.Major, &info.Minor, &info.Bytecode, &info.MissingAudio, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCatalogue
	}
	if err != nil {
		return nil, fmt.Errorf("reading archive_info: %w", err)
	}
	if info.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("parsing catalogue timestamp %q: %w", created, err)
	}
	return &info, nil
}

// dataSourceName builds a go-sqlite3 URI; the underscore parameters are
// applied by the driver on every new connection.
func dataSourceName(options *Options) string {
	params := url.Values{}
	if options.ReadOnly {
		params.Set("mode", "ro")
		params.Set("_query_only", "true")
	} else {
		params.Set("mode", "rwc")
		if options.WALMode {
			params.Set("_journal_mode", "WAL")
		}
		params.Set("_synchronous", "NORMAL")
	}
	if options.ForeignKeys {
		params.Set("_foreign_keys", "on")
	}
	if options.BusyTimeout > 0 {
		params.Set("_busy_timeout", strconv.FormatInt(options.BusyTimeout.Milliseconds(), 10))
	}
	if options.CacheSize > 0 {
		params.Set("_cache_size", strconv.Itoa(-options.CacheSize))
	}

	u := url.URL{Scheme: "file", Opaque: filepath.ToSlash(options.Path), RawQuery: params.Encode()}
	return u.String()
}

// ensureDirectory creates the directory for the database file if it doesn't exist
func ensureDirectory(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
