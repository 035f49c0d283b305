package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/pooriaast/sleuth/config"
	"github.com/pooriaast/sleuth/ingest"
	"github.com/pooriaast/sleuth/tools/docindex"
)

// indexCMD builds or refreshes the documentation index from a local docs
// directory and optional URLs.
func indexCMD() *cobra.Command {
	var docsDir string
	var urls []string
	idxCmd := &cobra.Command{
		Use:   "index",
		Short: "Build or refresh the documentation index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			logger := log.New(log.Writer(), "[INGEST] ", log.LstdFlags)

			if docsDir == "" {
				docsDir = cfg.Ingest.DocsDir
			}
			if len(urls) == 0 {
				urls = cfg.Ingest.URLs
			}

			idx, err := docindex.Open(cfg.Tools.Index.Path)
			if err != nil {
				return err
			}
			defer idx.Close()

			docs, err := ingest.LoadDir(docsDir)
			if err != nil {
				return err
			}

			fetcher := ingest.Fetcher{Render: cfg.Ingest.Render}
			for _, u := range urls {
				doc, err := fetcher.Fetch(cmd.Context(), u)
				if err != nil {
					logger.Printf("skipping %s: %v", u, err)
					continue
				}
				docs = append(docs, doc)
			}

			stats, err := ingest.BuildIndex(cmd.Context(), idx, docs, logger)
			if err != nil {
				return err
			}
			count, _ := idx.Count()
			fmt.Printf("indexed %d documents (%d chunks, %d total in index)\n", stats.Documents, stats.Children, count)
			return nil
		},
	}
	idxCmd.Flags().StringVar(&docsDir, "docs", "", "documentation directory (default from config)")
	idxCmd.Flags().StringArrayVar(&urls, "url", nil, "documentation URL to fetch and index (repeatable)")
	return idxCmd
}
