package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"messenger-connector/internal/config"
	"messenger-connector/internal/infra/logger"
	"messenger-connector/internal/infra/metrics"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the knowledge folder into the embedding cache",
	Long: `Load every JSON file of KNOWLEDGE_DIR, split it into chunks and store the
embedding of each new chunk in EMBEDDING_CACHE_PATH, so the server starts
without calling the embeddings API for unchanged documents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.Resolve()
		if !cfg.RetrievalEnabled() {
			return fmt.Errorf("indexing needs KNOWLEDGE_DIR and OPENAI_API_KEY")
		}

		log := logger.NewLogger(ctx, cfg.LogLevel, cfg.LogFormat == "json")
		a := &app{}
		defer a.close(log)

		retrieval, err := newRetrieval(cfg, log, metrics.Registry(cfg.MetricsNamespace), a)
		if err != nil {
			return err
		}

		stats, err := retrieval.Build(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d documents into %d chunks (%d cached, %d embedded)\n",
			stats.Documents, stats.Chunks, stats.Cached, stats.Embedded)
		return nil
	},
}
