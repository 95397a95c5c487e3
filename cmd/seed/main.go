package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"booknest/internal/config"
	"booknest/internal/db"
	"booknest/internal/repository"
)

var (
	source   string
	dbDriver string
	dsn      string
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load books into the BookNest catalog",
	Long: `Reads a JSON array of books from a local file or an http(s) URL and
upserts each entry by exact title and author. Entries without a title or
author, or with negative stock, are skipped.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if source == "" {
			return fmt.Errorf("no source given: pass --source or set SEED_SOURCE")
		}
		return run(cmd.Context(), dbDriver, dsn, source)
	},
}

func init() {
	cfg := config.Load()
	rootCmd.Flags().StringVarP(&source, "source", "s", cfg.SeedSource, "File path or http(s) URL of the books JSON")
	rootCmd.Flags().StringVar(&dbDriver, "db-driver", cfg.DBDriver, "Database driver: mysql, postgres or sqlite")
	rootCmd.Flags().StringVar(&dsn, "dsn", cfg.DatabaseDSN, "Database DSN")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, driver, dsn, source string) error {
	log.Println("Starting seed script...")

	gormDB, err := db.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	log.Println("Connected to database")

	// Run migrations to ensure schema is up to date
	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	log.Println("Database migrations completed")

	log.Printf("Loading books from: %s", source)
	entries, err := loadBooks(ctx, source)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d entries", len(entries))

	result, err := seedBooks(ctx, repository.NewBookRepository(gormDB), entries)
	if err != nil {
		return err
	}

	log.Printf("Seed completed successfully!")
	log.Printf("  - New books created: %d", result.Created)
	log.Printf("  - Existing books updated: %d", result.Updated)
	log.Printf("  - Invalid entries skipped: %d", result.Skipped)
	return nil
}
