package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ragchain/config"
	"ragchain/internal/usecase"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
	queryHyDE bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search ingested passages",
	Long: `Search for relevant passages with the configured engine. With --hyde the query
is first rewritten into a hypothetical answer passage by the configured LLM.

Examples:
  ragchain query -q "token refresh"
  ragchain query -q "database connection" --top-k 10 --json
  ragchain query -q "부산은 어떤 도시인가" --hyde`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryHyDE, "hyde", false, "rewrite the query with a hypothetical passage (default from config)")
	_ = queryCmd.MarkFlagRequired("query")
}

type queryOutput struct {
	Query        string                        `json:"query"`
	Hypothetical string                        `json:"hypothetical,omitempty"`
	Results      []usecase.ScoredPassageResult `json:"results"`
	Omitted      int                           `json:"omitted,omitempty"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := GetRootDir()

	if _, err := os.Stat(config.IndexDBPath(dir)); os.IsNotExist(err) {
		return fmt.Errorf("no index found. Run 'ragchain ingest' first")
	}

	eng, err := openEngine(cfg, dir, engineOptions{hyde: queryHyDE || cfg.HyDE.Enabled}, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	retrieveUC := usecase.NewRetrieveUseCase(eng.retrieval, cfg.Retrieve.MinScoreThreshold, logger)
	result, err := retrieveUC.RetrieveScored(cmd.Context(), queryText, topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := queryOutput{
		Query:   queryText,
		Results: usecase.ToResults(result.Passages),
		Omitted: result.Omitted,
	}
	if eng.hyde != nil {
		out.Hypothetical = eng.hyde.LastHypothetical()
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if out.Hypothetical != "" {
		fmt.Printf("Hypothetical passage:\n%s\n\n", out.Hypothetical)
	}
	if len(out.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(out.Results), queryText)
	for i, r := range out.Results {
		if r.Source != "" {
			fmt.Printf("--- [%d] %s:L%d-%d (score: %.3f) ---\n", i+1, r.Source, r.StartLine, r.EndLine, r.Score)
		} else {
			fmt.Printf("--- [%d] %s (score: %.3f) ---\n", i+1, r.ID, r.Score)
		}
		fmt.Println(truncate(r.Text, 500))
		fmt.Println()
	}
	if out.Omitted > 0 {
		fmt.Printf("(%d retrieved ids had no stored passage)\n", out.Omitted)
	}
	return nil
}

func truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
