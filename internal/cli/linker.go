package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"ragchain/internal/adapter/linker"
	"ragchain/internal/domain"
	"ragchain/internal/port"
)

var (
	linkerPutID   string
	linkerPutFile string
	linkerYes     bool
)

var linkerCmd = &cobra.Command{
	Use:   "linker",
	Short: "Inspect and maintain the passage linker store",
}

var linkerGetCmd = &cobra.Command{
	Use:   "get <id>...",
	Short: "Print stored documents in request order",
	Args:  cobra.MinimumNArgs(1),
	RunE: withLinker(func(ctx context.Context, l port.Linker, args []string) error {
		res, err := l.GetJSON(ctx, args)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Documents); err != nil {
			return err
		}
		for _, d := range res.Diagnostics {
			fmt.Fprintf(os.Stderr, "warning: %s: %s (position %d)\n", d.ID, d.Kind, d.Index)
		}
		return nil
	}),
}

var linkerPutCmd = &cobra.Command{
	Use:   "put",
	Short: "Store a JSON document read from --file or stdin",
	Long: `Store one JSON object under --id. Without --id a random id is generated
and printed.

Examples:
  echo '{"content":"hello"}' | ragchain linker put --id greeting
  ragchain linker put --file passage.json`,
	Args: cobra.NoArgs,
	RunE: withLinker(func(ctx context.Context, l port.Linker, args []string) error {
		var r io.Reader = os.Stdin
		if linkerPutFile != "" {
			f, err := os.Open(linkerPutFile)
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		var doc domain.Document
		if err := json.NewDecoder(r).Decode(&doc); err != nil {
			return domain.InvalidArgumentf("input is not a JSON object: %v", err)
		}
		id := linkerPutID
		if id == "" {
			id = uuid.NewString()
		}
		if err := l.PutJSON(ctx, []string{id}, []domain.Document{doc}); err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}),
}

var linkerDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete stored documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: withLinker(func(ctx context.Context, l port.Linker, args []string) error {
		var errs error
		for _, id := range args {
			errs = multierr.Append(errs, l.DeleteJSON(ctx, id))
		}
		return errs
	}),
}

var linkerPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the linker store is reachable",
	Args:  cobra.NoArgs,
	RunE: withLinker(func(ctx context.Context, l port.Linker, args []string) error {
		if !l.ConnectionCheck(ctx) {
			return domain.Connectivity(fmt.Sprintf("%s linker is not reachable", GetConfig().Linker.Backend), nil)
		}
		fmt.Println("ok")
		return nil
	}),
}

var linkerFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Remove every stored document (requires --yes)",
	Args:  cobra.NoArgs,
	RunE: withLinker(func(ctx context.Context, l port.Linker, args []string) error {
		if !linkerYes {
			return domain.InvalidArgumentf("flush removes every stored document; pass --yes to confirm")
		}
		if err := l.FlushDB(ctx); err != nil {
			return err
		}
		fmt.Println("flushed")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(linkerCmd)
	linkerCmd.AddCommand(linkerGetCmd, linkerPutCmd, linkerDeleteCmd, linkerPingCmd, linkerFlushCmd)

	linkerPutCmd.Flags().StringVar(&linkerPutID, "id", "", "document id (default: random UUID)")
	linkerPutCmd.Flags().StringVarP(&linkerPutFile, "file", "f", "", "read the document from a file instead of stdin")
	linkerFlushCmd.Flags().BoolVar(&linkerYes, "yes", false, "confirm flushing the store")
}

// withLinker opens the configured linker around fn with a bounded deadline.
func withLinker(fn func(ctx context.Context, l port.Linker, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		l, err := linker.New(GetConfig().Linker, GetRootDir(), logger)
		if err != nil {
			return err
		}
		defer l.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		return fn(ctx, l, args)
	}
}
