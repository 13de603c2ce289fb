package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"ragchain/internal/usecase"
)

var removeCmd = &cobra.Command{
	Use:   "remove <id>...",
	Short: "Remove passages from the index and the linker",
	Long: `Remove passages by id from every configured engine and delete their
documents from the linker store.

Examples:
  ragchain remove 3f1c9a2e-7d4b-4f7e-9a51-0c2d8e6b1f04`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(GetConfig(), GetRootDir(), engineOptions{}, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	result, err := usecase.NewRemoveUseCase(eng.retrieval, logger).Remove(cmd.Context(), args)
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d passage(s)\n", len(result.Removed))
	for _, id := range result.NotFound {
		fmt.Printf("  not found: %s\n", id)
	}
	return nil
}
