package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"ragchain/config"
	"ragchain/internal/logging"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
	cfg      *config.Config
	rootDir  string
	logger   *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ragchain",
	Short: "Retrieval toolkit with HyDE query rewriting and a passage linker",
	Long: `ragchain ingests local text files into a retrieval engine (BM25, semantic
or hybrid) whose passage contents live in a linker store (redis, bolt or memory),
and answers queries, optionally rewritten through a hypothetical passage (HyDE).

Example usage:
  ragchain ingest .                        # Ingest current directory
  ragchain query -q "how are tokens issued"
  ragchain query -q "서울의 인구" --hyde
  ragchain linker ping`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		var envFiles []string
		if envFile != "" {
			envFiles = append(envFiles, envFile)
		}
		if err := cfg.LoadEnv(envFiles...); err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ragchain.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file (default is ./.env)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
