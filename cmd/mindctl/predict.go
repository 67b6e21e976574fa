package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mindpattern/internal/model"
)

const barWidth = 30

var predictCmd = &cobra.Command{
	Use:   "predict <text>",
	Short: "Classify text with the configured strategies",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		resolver, err := model.NewResolver(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		result, err := resolver.Resolve(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		out := cmd.OutOrStdout()
		top := string(result.TopPattern)
		fmt.Fprintf(out, "%s %s\n", patternColor(top).Sprint(top), faint.Sprintf("(via %s)", result.Strategy))
		for _, s := range result.ConfidenceScores {
			fmt.Fprintf(out, "  %-12s %s %5.1f%%\n", s.Label, bar(s.Score), s.Score*100)
		}
		return nil
	},
}

func bar(score float64) string {
	n := min(max(int(score*barWidth+0.5), 0), barWidth)
	return strings.Repeat("█", n) + faint.Sprint(strings.Repeat("·", barWidth-n))
}

func init() {
	predictCmd.Flags().Bool("json", false, "print the response body as JSON")
}
