package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/chimera/internal/knowledge"
)

func ingestCMD() *cobra.Command {
	var query string
	ingest := &cobra.Command{
		Use:   "ingest [paths or urls...]",
		Short: "Index documents and optionally run a test query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			index, err := knowledge.NewIndex(nil, cfg.Knowledge.ChunkChars, nil)
			if err != nil {
				return err
			}
			defer index.Close()

			ing := knowledge.NewIngester(index, nil, cfg.Knowledge, nil)
			added := ing.Load(ctx, args)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "indexed %d chunks\n", added)
			for src, n := range index.Sources() {
				fmt.Fprintf(out, "  %-60s %d\n", src, n)
			}
			if query == "" {
				return nil
			}
			return printHits(ctx, index, query, cfg.Knowledge.TopK, cmd)
		},
	}
	ingest.Flags().StringVarP(&query, "query", "q", "", "run a BM25 query against the freshly built index")
	return ingest
}

func printHits(ctx context.Context, index *knowledge.Index, query string, n int, cmd *cobra.Command) error {
	hits, err := index.Hits(ctx, query, n)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, h := range hits {
		text := h.Text
		if len(text) > 160 {
			text = text[:160] + "..."
		}
		fmt.Fprintf(out, "%d. [%.3f] %s\n   %s\n", h.Rank, h.Score, h.Source, text)
	}
	return nil
}
