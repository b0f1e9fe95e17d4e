package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jchantrell/gmdata/internal/database"
	"github.com/jchantrell/gmdata/internal/utils"
	"github.com/spf13/cobra"
)

var (
	forceCatalogue bool
	batchSize      int
)

var catalogueCmd = &cobra.Command{
	Use:   "catalogue",
	Short: "Write the archive's resources into a SQLite database",
	Long: `Catalogue decodes the archive and writes strings, textures, atlas rects,
sprites, fonts, glyphs, objects, audio groups and audio into a SQLite
database. References between resources become foreign keys and sprite
frames are stored in a junction table.

A database that already holds tables is refused unless --force is given, in
which case the catalogue tables are dropped and recreated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		start := time.Now()

		a, err := openArchive(cfg)
		if err != nil {
			return err
		}

		db, err := database.Open(database.DefaultOptions(cfg.Database))
		if err != nil {
			return fmt.Errorf("creating database: %w", err)
		}
		defer db.Close()

		catalogue := database.NewCatalogue(db, &database.BulkInsertOptions{BatchSize: batchSize})

		hasTables, err := db.HasUserTables(ctx)
		if err != nil {
			return fmt.Errorf("checking database tables: %w", err)
		}
		if hasTables {
			if !forceCatalogue {
				return fmt.Errorf("database %s already contains tables, use --force to replace them", cfg.Database)
			}
			info, err := db.CatalogueInfo(ctx)
			switch {
			case err == nil:
				slog.Info("Dropping existing catalogue",
					"database", cfg.Database,
					"title", info.Title,
					"written", info.CreatedAt.Format(time.DateTime))
			case errors.Is(err, database.ErrNoCatalogue):
				slog.Warn("Database holds tables that are not a catalogue, only catalogue tables are replaced", "database", cfg.Database)
			default:
				return fmt.Errorf("reading existing catalogue: %w", err)
			}
			if err := catalogue.Drop(ctx); err != nil {
				return fmt.Errorf("dropping catalogue: %w", err)
			}
		}

		tables := database.CatalogueTables()
		slog.Info("Creating database schemas", "count", len(tables))
		schemaProgress := utils.NewProgress("Schema", len(tables), progressEnabled())
		if err := catalogue.CreateSchema(ctx, func(current, total int, description string) {
			schemaProgress.Update(current, description)
		}); err != nil {
			return fmt.Errorf("creating schemas: %w", err)
		}
		schemaProgress.Finish()

		writeProgress := utils.NewProgress("Writing", len(tables), progressEnabled())
		stats, err := catalogue.Write(ctx, a, func(current, total int, description string) {
			writeProgress.Update(current, description)
		})
		writeProgress.Finish()
		if err != nil {
			return fmt.Errorf("writing catalogue: %w", err)
		}

		names := make([]string, 0, len(stats.PerTable))
		for name := range stats.PerTable {
			names = append(names, name)
		}
		slices.Sort(names)

		var rowRate float64
		if seconds := stats.Duration.Seconds(); seconds > 0 {
			rowRate = float64(stats.Rows) / seconds
		}

		for _, name := range names {
			fmt.Printf("  %-16s %s rows\n", name, utils.Number(int64(stats.PerTable[name])))
		}
		fmt.Printf("Tables written: %d\n", stats.Tables)
		fmt.Printf("Rows inserted: %s\n", utils.Number(int64(stats.Rows)))
		fmt.Printf("Insert duration: %s\n", utils.Duration(stats.Duration))
		fmt.Printf("Total duration: %s\n", utils.Duration(time.Since(start)))
		fmt.Printf("Insertion rate: %s rows/sec\n", utils.Rate(rowRate))
		fmt.Println("Try running: gmdata query --tables")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogueCmd)
	catalogueCmd.Flags().BoolVar(&forceCatalogue, "force", false, "drop and recreate the catalogue when the database has tables")
	catalogueCmd.Flags().IntVar(&batchSize, "batch-size", 1000, "rows per insert transaction")
}
