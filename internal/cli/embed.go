package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ragchain/internal/adapter/embedding"
)

var (
	embedType   string
	embedDevice string
	embedJSON   bool
)

var embedCmd = &cobra.Command{
	Use:   "embed [text]",
	Short: "Embed text with a selected embedding backend",
	Long: `Resolve an embedding family and device, build the backend and embed the
given text as a query.

Examples:
  ragchain embed -t openai "hello world"
  ragchain embed -t KoSimCSE --device cpu "안녕하세요"`,
	Args: cobra.ExactArgs(1),
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().StringVarP(&embedType, "type", "t", "", "embedding family (default from config)")
	embedCmd.Flags().StringVar(&embedDevice, "device", "", "cpu, mps or cuda (default from config)")
	embedCmd.Flags().BoolVar(&embedJSON, "json", false, "print the full vector as JSON")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ec := GetConfig().Embedding
	if embedType != "" && embedType != ec.Type {
		// model overrides belong to the configured family only
		ec.Type = embedType
		ec.Model = ""
		ec.Dimension = 0
	}
	if embedDevice != "" {
		ec.Device = embedDevice
	}

	selector, err := embedding.FromConfig(ec, logger)
	if err != nil {
		return err
	}
	handle, err := selector.Get()
	if err != nil {
		return err
	}

	vec, err := handle.EmbedQuery(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if embedJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"backend": handle.String(),
			"vector":  vec,
		})
	}
	fmt.Printf("%s\n", handle)
	fmt.Printf("dimension: %d\n", len(vec))
	preview := vec
	if len(preview) > 8 {
		preview = preview[:8]
	}
	fmt.Printf("head: %v\n", preview)
	return nil
}
