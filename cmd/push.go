package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/expo-cli/internal/pipeline"
	"github.com/sells-group/expo-cli/pkg/notion"
)

var pushFile string

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push enriched companies into the Notion prospect database",
	Long:  "Upserts rows from the enriched CSV into Notion, keyed by company domain: existing pages are updated in place, new companies get new pages.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("push"); err != nil {
			return err
		}

		csvPath := pushFile
		if csvPath == "" {
			csvPath = filepath.Join(cfg.Output.Dir, pipeline.EnrichedCSV)
		}

		client := notion.NewClient(cfg.Notion.Token)

		result, err := notion.PushCSV(ctx, client, cfg.Notion.DatabaseID, csvPath)
		if err != nil {
			return eris.Wrap(err, "push csv")
		}

		zap.L().Info("push complete",
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
			zap.Int("skipped", result.Skipped),
			zap.String("csv", csvPath),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	pushCmd.Flags().StringVar(&pushFile, "file", "", "CSV to push (default the enriched output of the last run)")
	rootCmd.AddCommand(pushCmd)
}
