package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jchantrell/gmdata/internal/database"
	"github.com/spf13/cobra"
)

var (
	listTables  bool
	schemaTable string
)

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Query the catalogue database from the command line",
	Long: `Query executes SQL against a catalogue written by the catalogue command,
lists its tables, or shows the columns of one table.

  gmdata query --tables
  gmdata query --schema sprites
  gmdata query "SELECT name, width, height FROM sprites ORDER BY name"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		slog.Debug("Query parameters",
			"database", cfg.Database,
			"list-tables", listTables,
			"schema", schemaTable)

		db, err := database.Open(database.QueryOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		if info, err := db.CatalogueInfo(ctx); err == nil {
			slog.Debug("Catalogue",
				"title", info.Title,
				"version", fmt.Sprintf("%d.%d", info.Major, info.Minor),
				"written", info.CreatedAt)
		} else if errors.Is(err, database.ErrNoCatalogue) {
			slog.Warn("Database holds no catalogue, run the catalogue command first", "database", cfg.Database)
		}

		switch {
		case listTables:
			return printTables(ctx, db)
		case schemaTable != "":
			return printSchema(ctx, db, schemaTable)
		case len(args) > 0:
			return printQuery(ctx, db, args[0])
		}
		return fmt.Errorf("no query provided, use --tables to list tables or --schema <table> to show schema")
	},
}

func printTables(ctx context.Context, db *database.Database) error {
	names, err := db.Tables(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Available tables:")
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
	return nil
}

func printSchema(ctx context.Context, db *database.Database, table string) error {
	quoted := `"` + strings.ReplaceAll(table, `"`, `""`) + `"`
	rows, err := db.Query(ctx, `PRAGMA table_info(`+quoted+`)`)
	if err != nil {
		return fmt.Errorf("getting schema for table %s: %w", table, err)
	}
	defer rows.Close()

	fmt.Printf("Schema for table '%s':\n", table)
	fmt.Printf("%-20s %-10s %-10s %-10s %-10s\n", "Column", "Type", "NotNull", "Default", "Primary")
	fmt.Println(strings.Repeat("-", 64))

	found := false
	for rows.Next() {
		var cid, notNull, primaryKey int
		var name, dataType string
		var defaultValue any
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &primaryKey); err != nil {
			return fmt.Errorf("scanning schema row: %w", err)
		}
		found = true

		defaultStr := "NULL"
		if defaultValue != nil {
			defaultStr = fmt.Sprintf("%v", defaultValue)
		}
		fmt.Printf("%-20s %-10s %-10s %-10s %-10s\n",
			name, dataType, yesNo(notNull != 0), defaultStr, yesNo(primaryKey != 0))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating schema: %w", err)
	}
	if !found {
		return fmt.Errorf("table %s does not exist", table)
	}
	return nil
}

func printQuery(ctx context.Context, db *database.Database, query string) error {
	slog.Debug("Executing SQL query", "query", query)

	rows, err := db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("getting column names: %w", err)
	}

	separators := make([]string, len(columns))
	for i, col := range columns {
		separators[i] = strings.Repeat("-", len(col))
	}
	fmt.Println(strings.Join(columns, "\t"))
	fmt.Println(strings.Join(separators, "\t"))

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	cells := make([]string, len(columns))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}
		for i, val := range values {
			switch v := val.(type) {
			case nil:
				cells[i] = "NULL"
			case []byte:
				cells[i] = string(v)
			default:
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Println(strings.Join(cells, "\t"))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rows: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&listTables, "tables", false, "List available tables")
	queryCmd.Flags().StringVar(&schemaTable, "schema", "", "Show schema for specified table")
}
