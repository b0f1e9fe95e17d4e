package database

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jchantrell/gmdata/internal/utils"
)

// ColumnType is the logical type of a catalogue column
type ColumnType int

const (
	TypeInteger ColumnType = iota
	TypeReal
	TypeText
	TypeBool
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	case TypeText:
		return "text"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Reference points a column at another table's _index
type Reference struct {
	Table string
}

// Column describes one catalogue column. Names are CamelCase and become
// snake_case in SQL.
type Column struct {
	Name       string
	Type       ColumnType
	Array      bool
	References *Reference
}

// TableSchema describes one catalogue table. Every table also gets an
// _index primary key.
type TableSchema struct {
	Name    string
	Columns []Column
}

// SQLName returns the table name as it appears in SQL
func (t *TableSchema) SQLName() string {
	return utils.ToSnakeCase(t.Name)
}

// junctionColumns lists the reference arrays of the table, each stored in
// its own junction table.
func (t *TableSchema) junctionColumns() []Column {
	var out []Column
	for _, c := range t.Columns {
		if c.Array && c.References != nil {
			out = append(out, c)
		}
	}
	return out
}

func junctionTableName(table, column string) string {
	return fmt.Sprintf("%s_%s_junction", table, column)
}

// SchemaProgressCallback is called during schema creation to report progress
type SchemaProgressCallback func(current int, total int, description string)

// DDLManager handles schema creation with bulk DDL execution
type DDLManager struct {
	db             *Database
	maxConcurrency int
}

// NewDDLManager creates a new DDL manager
func NewDDLManager(db *Database) *DDLManager {
	return &DDLManager{
		db:             db,
		maxConcurrency: runtime.NumCPU(),
	}
}

// GenerateTableDDL generates CREATE TABLE SQL for a given table schema
func (dm *DDLManager) GenerateTableDDL(table *TableSchema) (string, error) {
	if table == nil {
		return "", fmt.Errorf("table schema cannot be nil")
	}
	if table.Name == "" {
		return "", fmt.Errorf("table name cannot be empty")
	}

	columns := []string{"_index INTEGER PRIMARY KEY"}
	var foreignKeys []string

	for i, column := range table.Columns {
		if column.Name == "" {
			return "", fmt.Errorf("column %d of %s has no name", i, table.Name)
		}
		columnName := utils.ToSnakeCase(column.Name)
		columnDDL, fkDDL, err := dm.generateColumnDDL(&column, columnName)
		if err != nil {
			return "", fmt.Errorf("generating column %d (%s): %w", i, columnName, err)
		}

		// Reference arrays live in junction tables
		if columnDDL != "" {
			columns = append(columns, columnDDL)
		}
		if fkDDL != "" {
			foreignKeys = append(foreignKeys, fkDDL)
		}
	}
	columns = append(columns, foreignKeys...)

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		quoteSQLIdentifier(table.SQLName()),
		strings.Join(columns, ",\n    ")), nil
}

// generateColumnDDL returns the column definition and its foreign key
// constraint, if any
func (dm *DDLManager) generateColumnDDL(column *Column, columnName string) (string, string, error) {
	if column.Array {
		if column.References != nil {
			return "", "", nil
		}
		// Plain arrays are stored as JSON
		return fmt.Sprintf("%s TEXT", quoteSQLIdentifier(columnName)), "", nil
	}

	baseType, err := mapColumnType(column.Type)
	if err != nil {
		return "", "", fmt.Errorf("mapping type %s: %w", column.Type, err)
	}
	columnDDL := fmt.Sprintf("%s %s", quoteSQLIdentifier(columnName), baseType)

	var foreignKeyDDL string
	if column.References != nil {
		fkDDL, err := generateForeignKeyDDL(columnName, column.References)
		if err != nil {
			return "", "", fmt.Errorf("generating foreign key for %s: %w", columnName, err)
		}
		foreignKeyDDL = fkDDL
	}
	return columnDDL, foreignKeyDDL, nil
}

// mapColumnType maps catalogue column types to SQLite types
func mapColumnType(t ColumnType) (string, error) {
	switch t {
	case TypeInteger, TypeBool:
		return "INTEGER", nil
	case TypeReal:
		return "REAL", nil
	case TypeText:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("unsupported column type: %s", t)
	}
}

func generateForeignKeyDDL(columnName string, ref *Reference) (string, error) {
	if ref.Table == "" {
		return "", fmt.Errorf("referenced table cannot be empty")
	}
	return fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(_index)",
		quoteSQLIdentifier(columnName), quoteSQLIdentifier(utils.ToSnakeCase(ref.Table))), nil
}

// generateJunctionTableDDL generates CREATE TABLE SQL for the junction
// table backing a reference array
func generateJunctionTableDDL(tableName, columnName string, ref *Reference) (string, error) {
	if ref == nil || ref.Table == "" {
		return "", fmt.Errorf("junction column %s.%s has no referenced table", tableName, columnName)
	}

	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    _parent_index INTEGER NOT NULL,
    _array_index INTEGER NOT NULL,
    value INTEGER,
    FOREIGN KEY (_parent_index) REFERENCES %s(_index),
    FOREIGN KEY (value) REFERENCES %s(_index),
    UNIQUE(_parent_index, _array_index)
)`, quoteSQLIdentifier(junctionTableName(tableName, columnName)),
		quoteSQLIdentifier(tableName),
		quoteSQLIdentifier(utils.ToSnakeCase(ref.Table))), nil
}

// DDLRequest is one generated DDL statement
type DDLRequest struct {
	Type        string // "table" or "junction"
	DDL         string
	TableName   string
	Description string
}

// CreateSchemas creates every table and junction table, main tables first
func (dm *DDLManager) CreateSchemas(ctx context.Context, tables []TableSchema, progressCallback SchemaProgressCallback) error {
	if len(tables) == 0 {
		return nil
	}

	ddlRequests, err := dm.generateAllDDLParallel(ctx, tables)
	if err != nil {
		return fmt.Errorf("generating DDL: %w", err)
	}

	if err := dm.executeDDLBulk(ctx, ddlRequests, progressCallback); err != nil {
		return fmt.Errorf("executing DDL: %w", err)
	}
	return nil
}

// generateAllDDLParallel generates the DDL of every table in parallel,
// keeping the input order
func (dm *DDLManager) generateAllDDLParallel(ctx context.Context, tables []TableSchema) ([]DDLRequest, error) {
	results := make([][]DDLRequest, len(tables))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(dm.maxConcurrency)
	for i := range tables {
		g.Go(func() error {
			requests, err := dm.generateTableDDLRequests(&tables[i])
			if err != nil {
				return fmt.Errorf("generating DDL for table %s: %w", tables[i].Name, err)
			}
			results[i] = requests
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(results...), nil
}

// generateTableDDLRequests generates all DDL requests for a single table
func (dm *DDLManager) generateTableDDLRequests(table *TableSchema) ([]DDLRequest, error) {
	tableName := table.SQLName()

	tableDDL, err := dm.GenerateTableDDL(table)
	if err != nil {
		return nil, fmt.Errorf("generating table DDL: %w", err)
	}
	requests := []DDLRequest{{
		Type:        "table",
		DDL:         tableDDL,
		TableName:   tableName,
		Description: table.Name,
	}}

	for _, column := range table.junctionColumns() {
		columnName := utils.ToSnakeCase(column.Name)
		junctionDDL, err := generateJunctionTableDDL(tableName, columnName, column.References)
		if err != nil {
			return nil, err
		}
		requests = append(requests, DDLRequest{
			Type:        "junction",
			DDL:         junctionDDL,
			TableName:   junctionTableName(tableName, columnName),
			Description: fmt.Sprintf("%s.%s", table.Name, column.Name),
		})
	}
	return requests, nil
}

// executeDDLBulk executes main tables and then junction tables, each group
// in one transaction
func (dm *DDLManager) executeDDLBulk(ctx context.Context, ddlRequests []DDLRequest, progressCallback SchemaProgressCallback) error {
	var mainTableRequests []DDLRequest
	var junctionTableRequests []DDLRequest
	for _, req := range ddlRequests {
		if req.Type == "table" {
			mainTableRequests = append(mainTableRequests, req)
		} else {
			junctionTableRequests = append(junctionTableRequests, req)
		}
	}

	total := len(ddlRequests)
	current := 0
	if err := dm.executeDDLTransaction(ctx, mainTableRequests, "main tables", progressCallback, &current, total); err != nil {
		return fmt.Errorf("executing main tables: %w", err)
	}
	if err := dm.executeDDLTransaction(ctx, junctionTableRequests, "junction tables", progressCallback, &current, total); err != nil {
		return fmt.Errorf("executing junction tables: %w", err)
	}

	slog.Debug("Created catalogue schema", "tables", len(mainTableRequests), "junction_tables", len(junctionTableRequests))
	return nil
}

// executeDDLTransaction executes DDL statements in a single transaction with progress reporting
func (dm *DDLManager) executeDDLTransaction(ctx context.Context, ddlRequests []DDLRequest, description string, progressCallback SchemaProgressCallback, currentProgress *int, totalTables int) error {
	if len(ddlRequests) == 0 {
		return nil
	}

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction for %s: %w", description, err)
	}
	defer tx.Rollback()

	for _, req := range ddlRequests {
		if _, err := tx.ExecContext(ctx, req.DDL); err != nil {
			return fmt.Errorf("executing DDL for %s in %s: %w", req.TableName, description, err)
		}
		if progressCallback != nil {
			*currentProgress++
			progressCallback(*currentProgress, totalTables, req.Description)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing DDL transaction for %s: %w", description, err)
	}
	return nil
}

// DropSchemas drops every table and junction table in reverse order so
// foreign keys never point at a dropped table
func (dm *DDLManager) DropSchemas(ctx context.Context, tables []TableSchema) error {
	var names []string
	for i := len(tables) - 1; i >= 0; i-- {
		tableName := tables[i].SQLName()
		for _, column := range tables[i].junctionColumns() {
			names = append(names, junctionTableName(tableName, utils.ToSnakeCase(column.Name)))
		}
		names = append(names, tableName)
	}

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning drop transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range names {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteSQLIdentifier(name)); err != nil {
			return fmt.Errorf("dropping %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing drop transaction: %w", err)
	}

	slog.Debug("Dropped catalogue tables", "count", len(names))
	return nil
}

// quoteSQLIdentifier quotes SQL identifiers to prevent conflicts with reserved words
func quoteSQLIdentifier(identifier string) string {
	return fmt.Sprintf(`"%s"`, identifier)
}
