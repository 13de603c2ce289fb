package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"ragchain/config"
	"ragchain/internal/domain"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default ragchain.yaml into the working directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(GetRootDir(), "ragchain.yaml")
		if _, err := os.Stat(path); err == nil && !initForce {
			return domain.InvalidArgumentf("%s already exists; pass --force to overwrite", path)
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}
