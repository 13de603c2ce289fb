package cli

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"ragchain/config"
	"ragchain/internal/adapter/analyzer"
	"ragchain/internal/adapter/chunker"
	"ragchain/internal/adapter/fs"
	"ragchain/internal/usecase"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest files into the retrieval engine",
	Long: `Split the files under path into passages and ingest them. Passage contents go to
the configured linker; the index is stored in .ragchain/index.db within the working
directory.

Examples:
  ragchain ingest .                 # Ingest current directory
  ragchain ingest /path/to/notes    # Ingest a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path, err := resolvePath(args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	cfg := GetConfig()
	eng, err := openEngine(cfg, GetRootDir(), engineOptions{forIngest: true}, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	if eng.rebuilt != "" {
		fmt.Printf("Index rebuilt: %s\n", eng.rebuilt)
	}

	walker, err := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)
	if err != nil {
		return err
	}
	splitter := chunker.NewLineChunker(cfg.Ingest.PassageTokens, cfg.Ingest.PassageOverlap, analyzer.NewTokenizer())
	ingestUC := usecase.NewIngestUseCase(walker, splitter, eng.retrieval, logger)

	fmt.Printf("Scanning %s...\n", path)

	var bar *progressbar.ProgressBar
	var barMu sync.Mutex
	var startTime time.Time

	progress := func(processed, total int, current string) {
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		_ = bar.Set(processed)

		if processed > 0 && processed < total {
			rate := float64(processed) / time.Since(startTime).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-processed)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	result, err := ingestUC.Ingest(cmd.Context(), path, progress)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if err := eng.index.Stamp(cfg); err != nil {
		return fmt.Errorf("failed to update schema info: %w", err)
	}

	fmt.Printf("\nIngest complete (run %s):\n", result.RunID)
	fmt.Printf("  Files ingested:   %d\n", result.FilesIngested)
	fmt.Printf("  Files skipped:    %d (empty or not text)\n", result.FilesSkipped)
	fmt.Printf("  Files failed:     %d\n", result.FilesFailed)
	fmt.Printf("  Passages:         %d\n", result.PassagesIngested)

	if result.Err != nil {
		fmt.Printf("\nWarnings:\n")
		for _, e := range multierr.Errors(result.Err) {
			fmt.Printf("  - %v\n", e)
		}
	}

	fmt.Printf("\nIndex stored at: %s\n", config.IndexDBPath(GetRootDir()))
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
