package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rentfold/tenancy/src/config"
	"github.com/rentfold/tenancy/src/services"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "tenancy-admin",
		Short:         "Operational tooling for the tenancy service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(migrateCmd())
	root.AddCommand(fastTrackCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations in lexical order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no .sql files found in %s", dir)
			}
			sort.Strings(files)

			ctx := cmd.Context()
			for _, f := range files {
				raw, err := os.ReadFile(f)
				if err != nil {
					return err
				}
				if strings.TrimSpace(string(raw)) == "" {
					continue
				}
				if _, err := db.ExecContext(ctx, string(raw)); err != nil {
					return fmt.Errorf("apply %s: %w", filepath.Base(f), err)
				}
				fmt.Printf("applied %s\n", filepath.Base(f))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "migrations", "directory containing migration files")
	return cmd
}

func fastTrackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offboard-fast-track <lease-id>",
		Short: "Terminate a lease immediately, skipping notice and inspection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			leaseID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid lease id %q: %w", args[0], err)
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()

			svc := services.NewOffboardingService(db,
				services.NewLogIdentityDirectory(log),
				services.NewLogNotifier(log),
				log)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := svc.FastTrack(ctx, leaseID); err != nil {
				return err
			}
			fmt.Printf("lease %s terminated\n", leaseID)
			return nil
		},
	}
}

func openDB() (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
