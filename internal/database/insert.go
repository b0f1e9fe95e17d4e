package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jchantrell/gmdata/internal/utils"
)

// BulkInserter writes catalogue rows in batched transactions
type BulkInserter struct {
	db        *Database
	batchSize int
}

// BulkInsertOptions configures bulk insertion behavior
type BulkInsertOptions struct {
	// BatchSize determines how many rows to insert per transaction
	BatchSize int
}

// DefaultBulkInsertOptions returns sensible defaults for bulk insertion
func DefaultBulkInsertOptions() *BulkInsertOptions {
	return &BulkInsertOptions{
		BatchSize: 1000,
	}
}

// NewBulkInserter creates a new bulk inserter with the given database and options
func NewBulkInserter(db *Database, options *BulkInsertOptions) *BulkInserter {
	if options == nil {
		options = DefaultBulkInsertOptions()
	}
	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBulkInsertOptions().BatchSize
	}
	return &BulkInserter{db: db, batchSize: batchSize}
}

// TableData holds the rows of one table
type TableData struct {
	Schema *TableSchema
	Rows   []RowData
}

// RowData is one row keyed by CamelCase column name. Missing columns are
// written as NULL.
type RowData struct {
	Index  int
	Values map[string]any
}

// InsertTableData performs bulk insertion of table data with transaction batching
func (bi *BulkInserter) InsertTableData(ctx context.Context, tableData *TableData) error {
	if tableData == nil {
		return fmt.Errorf("table data cannot be nil")
	}
	if tableData.Schema == nil {
		return fmt.Errorf("table schema cannot be nil")
	}
	if len(tableData.Rows) == 0 {
		slog.Debug("No rows to insert", "table", tableData.Schema.Name)
		return nil
	}

	tableName := tableData.Schema.SQLName()
	insertSQL, columnOrder := generateInsertSQL(tableData.Schema)

	for i := 0; i < len(tableData.Rows); i += bi.batchSize {
		end := min(i+bi.batchSize, len(tableData.Rows))
		if err := bi.insertBatch(ctx, insertSQL, columnOrder, tableData, tableData.Rows[i:end]); err != nil {
			return fmt.Errorf("inserting batch %d-%d for table %s: %w", i, end-1, tableName, err)
		}
	}
	return nil
}

// generateInsertSQL creates the INSERT statement and the column order of
// its placeholders. Reference arrays go to junction tables.
func generateInsertSQL(schema *TableSchema) (string, []*Column) {
	quoted := []string{quoteSQLIdentifier("_index")}
	order := []*Column{nil}
	for i := range schema.Columns {
		column := &schema.Columns[i]
		if column.Array && column.References != nil {
			continue
		}
		quoted = append(quoted, quoteSQLIdentifier(columnSQLName(column)))
		order = append(order, column)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(quoted)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteSQLIdentifier(schema.SQLName()),
		strings.Join(quoted, ", "),
		placeholders), order
}

// insertBatch inserts a single batch of rows within a transaction
func (bi *BulkInserter) insertBatch(ctx context.Context, insertSQL string, columnOrder []*Column, tableData *TableData, batch []RowData) error {
	tx, err := bi.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	junctions, err := prepareJunctionStatements(ctx, tx, tableData.Schema)
	if err != nil {
		return err
	}
	defer func() {
		for _, j := range junctions {
			j.stmt.Close()
		}
	}()

	for _, row := range batch {
		values, err := buildRowValues(columnOrder, &row)
		if err != nil {
			return fmt.Errorf("building values for row %d: %w", row.Index, err)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("inserting row %d: %w", row.Index, err)
		}
		if err := insertJunctionTableData(ctx, junctions, &row); err != nil {
			return fmt.Errorf("inserting junction data for row %d: %w", row.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// buildRowValues constructs the ordered parameter values for a row insertion
func buildRowValues(columnOrder []*Column, row *RowData) ([]any, error) {
	values := make([]any, len(columnOrder))
	for i, column := range columnOrder {
		if column == nil {
			values[i] = row.Index
			continue
		}
		value, ok := row.Values[column.Name]
		if !ok {
			continue
		}
		processed, err := processColumnValue(column, value)
		if err != nil {
			return nil, fmt.Errorf("processing value for column %s: %w", columnSQLName(column), err)
		}
		values[i] = processed
	}
	return values, nil
}

// processColumnValue converts a Go value into what SQLite stores for the column
func processColumnValue(column *Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if column.Array {
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("serializing array value to JSON: %w", err)
		}
		return string(jsonBytes), nil
	}
	if column.References != nil {
		return processReferenceValue(value)
	}
	return processScalarValue(value, column.Type)
}

// processReferenceValue maps negative indices to NULL
func processReferenceValue(value any) (any, error) {
	var index int64
	switch v := value.(type) {
	case int:
		index = int64(v)
	case int32:
		index = int64(v)
	case int64:
		index = v
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported reference type %T", value)
	}
	if index < 0 {
		return nil, nil
	}
	return index, nil
}

// processScalarValue handles basic scalar value processing
func processScalarValue(value any, columnType ColumnType) (any, error) {
	switch columnType {
	case TypeBool:
		if b, ok := value.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case TypeReal:
		switch v := value.(type) {
		case float32:
			return float64(v), nil
		case float64:
			return v, nil
		}
	case TypeInteger:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case uint16:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case int64:
			return v, nil
		}
	case TypeText:
		switch v := value.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		}
	}
	return nil, fmt.Errorf("cannot store %T as %s", value, columnType)
}

type junctionStatement struct {
	column *Column
	stmt   *sql.Stmt
}

func prepareJunctionStatements(ctx context.Context, tx *sql.Tx, schema *TableSchema) ([]junctionStatement, error) {
	var out []junctionStatement
	for _, column := range schema.junctionColumns() {
		junctionSQL := fmt.Sprintf(
			"INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)",
			quoteSQLIdentifier(junctionTableName(schema.SQLName(), columnSQLName(&column))),
			quoteSQLIdentifier("_parent_index"),
			quoteSQLIdentifier("_array_index"),
			quoteSQLIdentifier("value"))

		stmt, err := tx.PrepareContext(ctx, junctionSQL)
		if err != nil {
			for _, j := range out {
				j.stmt.Close()
			}
			return nil, fmt.Errorf("preparing junction table statement for %s: %w", column.Name, err)
		}
		out = append(out, junctionStatement{column: &column, stmt: stmt})
	}
	return out, nil
}

// insertJunctionTableData writes one junction row per array element.
// Elements that are null references are skipped but keep their position.
func insertJunctionTableData(ctx context.Context, junctions []junctionStatement, row *RowData) error {
	for _, j := range junctions {
		value, exists := row.Values[j.column.Name]
		if !exists {
			continue
		}
		elements, err := convertToSlice(value)
		if err != nil {
			return fmt.Errorf("converting array value for column %s: %w", j.column.Name, err)
		}

		for arrayIndex, element := range elements {
			processed, err := processReferenceValue(element)
			if err != nil {
				return fmt.Errorf("processing array element at index %d: %w", arrayIndex, err)
			}
			if processed == nil {
				continue
			}
			if _, err := j.stmt.ExecContext(ctx, row.Index, arrayIndex, processed); err != nil {
				return fmt.Errorf("inserting junction row for %s[%d]: %w", j.column.Name, arrayIndex, err)
			}
		}
	}
	return nil
}

func convertToSlice(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case []int:
		return toAny(v), nil
	case []int32:
		return toAny(v), nil
	case []int64:
		return toAny(v), nil
	default:
		return nil, fmt.Errorf("unsupported array type: %T", value)
	}
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func columnSQLName(c *Column) string {
	return utils.ToSnakeCase(c.Name)
}
