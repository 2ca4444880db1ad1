package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wichananm65/ebook-storefront/internal/config"
	"github.com/wichananm65/ebook-storefront/internal/database"
	"github.com/wichananm65/ebook-storefront/internal/product"
	"github.com/wichananm65/ebook-storefront/internal/testimonial"
)

func openDB(cmd *cobra.Command) (*sql.DB, error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		url = viper.GetString("database_url")
	}
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, fmt.Errorf("database_url is not set (flag --database-url, config or DATABASE_URL)")
	}
	return database.Open(&config.DatabaseConfig{
		URL:             url,
		Driver:          "pgx",
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
}

func addDBFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("database-url", "", "Postgres connection URL")
	cmd.PersistentFlags().String("migrations", "./migrations", "migrations directory")
}

func migrationsDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("migrations")
	return dir
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}
	addDBFlags(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.MigrateUp(db, migrationsDir(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.MigrateDown(db, migrationsDir(cmd), steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Replace the catalog and testimonials with the contents of a YAML file",
		Example: `  storectl seed --file catalog.yaml --database-url postgres://localhost/storefront`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadCatalog(file)
			if err != nil {
				return err
			}
			db, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			return seed(ctx, cmd, product.NewPostgresRepository(db), testimonial.NewPostgresRepository(db), c)
		},
	}
	addDBFlags(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "catalog.yaml", "seed file")
	return cmd
}

func seed(ctx context.Context, cmd *cobra.Command, products product.Repository, testimonials testimonial.Repository, c catalog) error {
	if err := product.NewService(products).ResetProducts(ctx, c.Products); err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "inserted %d products\n", len(c.Products))

	if err := testimonials.Reset(ctx, c.Testimonials); err != nil {
		return fmt.Errorf("seed testimonials: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "inserted %d testimonials\n", len(c.Testimonials))
	return nil
}
