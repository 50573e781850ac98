package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-ask/internal/core/domain"
	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// rerankPoolFactor widens retrieval when --rerank is set.
const rerankPoolFactor = 2

var (
	searchSpace  string
	searchMode   string
	searchLimit  int
	searchJSON   bool
	searchRerank bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs hybrid search within one search space.
Combines keyword (BM25) and semantic (vector) search with weighted
reciprocal rank fusion. Document mode returns one result per document.
With --rerank the results are reordered by the configured reranker.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchSpace, "space", "s", "", "search space ID or name")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", string(domain.SearchModeChunk), "result granularity: chunk or document")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchRerank, "rerank", false, "reorder results with the configured reranker")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	mode := domain.SearchMode(strings.ToLower(searchMode))
	if !mode.IsValid() {
		return fmt.Errorf("unknown mode %q: use chunk or document", searchMode)
	}

	ctx := commandContext(cmd)

	spaceID, err := resolveSpace(ctx, searchSpace)
	if err != nil {
		return err
	}

	opts := domain.SearchOptions{
		SearchSpaceID: spaceID,
		Limit:         searchLimit,
		Mode:          mode,
	}
	if searchRerank && searchLimit > 0 {
		// give the reranker a wider pool to pick from
		opts.Limit = searchLimit * rerankPoolFactor
	}

	results, err := searchService.Search(ctx, query, opts)
	if errors.Is(err, domain.ErrRetrievalUnavailable) {
		logger.Warn("Dense retrieval unavailable, retrying keyword only: %v", err)
		warnf(cmd, "semantic search unavailable, showing keyword matches")
		opts.SparseOnly = true
		results, err = searchService.Search(ctx, query, opts)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchRerank {
		results = rerankResults(cmd, query, results, searchLimit)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	newPrinter(cmd.OutOrStdout()).candidates(results)
	return nil
}

// rerankResults reorders results and keeps the top k. Without a usable
// reranker the fused order is kept.
func rerankResults(cmd *cobra.Command, query string, results []domain.Candidate, k int) []domain.Candidate {
	if k <= 0 || k > len(results) {
		k = len(results)
	}
	if rerankService == nil || !rerankService.Enabled() {
		warnf(cmd, "no reranker configured, keeping fused order")
		return results[:k]
	}

	reranked, err := rerankService.Rerank(commandContext(cmd), query, results, k)
	if err != nil {
		logger.Warn("Rerank failed, keeping fused order: %v", err)
		warnf(cmd, "rerank unavailable, keeping fused order")
	}
	return reranked
}

func outputSearchJSON(cmd *cobra.Command, results []domain.Candidate) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
