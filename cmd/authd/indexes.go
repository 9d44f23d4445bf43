package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/99minutos/auth-system/internal/infrastructure/config"
	mongodb "github.com/99minutos/auth-system/internal/infrastructure/db/mongo"
)

// NewEnsureIndexesCmd creates the ensure-indexes subcommand.
func NewEnsureIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the MongoDB indexes and exit",
		Long: `Create the unique email index, the proof token indexes and the refresh
session TTL index. Safe to run repeatedly.`,
		RunE: runEnsureIndexes,
	}
}

func runEnsureIndexes(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	cmd.Println("Connecting to MongoDB...")
	client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(ctx) }()

	cmd.Println("Creating indexes...")
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	cmd.Println("Indexes are up to date")
	return nil
}
