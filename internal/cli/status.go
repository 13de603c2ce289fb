package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"ragchain/config"
	"ragchain/internal/adapter/linker"
	"ragchain/internal/adapter/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics and linker reachability",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()
	if err := config.EnsureDataDir(dir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	index, err := store.NewBoltStore(config.IndexDBPath(dir))
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer index.Close()

	stats, err := index.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	migration, err := index.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	// width 0 adopts whatever is stored
	vectors, err := store.NewBoltVectorStore(index.DB(), 0)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	vectorCount, err := vectors.Count()
	if err != nil {
		return err
	}

	fmt.Printf("Index:     %s\n", config.IndexDBPath(dir))
	fmt.Printf("  Backend:  %s\n", cfg.Retrieve.Backend)
	fmt.Printf("  Passages: %d (avg %.1f tokens)\n", stats.TotalPassages, stats.AvgPassageLen)
	fmt.Printf("  Vectors:  %d", vectorCount)
	if d := vectors.Dimension(); d > 0 {
		fmt.Printf(" x %d", d)
	}
	fmt.Println()
	if migration.NeedsRebuild {
		fmt.Printf("  Rebuild needed: %s\n", migration.Reason)
	}

	l, err := linker.New(cfg.Linker, dir, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	where := cfg.Linker.Backend
	if cfg.Linker.Backend == "redis" {
		where += " " + cfg.Linker.Addr()
	}
	state := "reachable"
	if !l.ConnectionCheck(ctx) {
		state = "unreachable"
	}
	fmt.Printf("Linker:    %s (%s)\n", where, state)
	return nil
}
