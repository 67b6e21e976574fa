package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"mindpattern/internal/domain"
	"mindpattern/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		repo, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer repo.Close()

		out := cmd.OutOrStdout()

		if showStats, _ := cmd.Flags().GetBool("stats"); showStats {
			var since time.Time
			if days, _ := cmd.Flags().GetInt("days"); days > 0 {
				since = time.Now().UTC().AddDate(0, 0, -days)
			}

			st, err := repo.Stats(cmd.Context(), since)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s %d\n", bold.Sprint("total:"), st.Total)
			patterns := make([]string, 0, len(st.ByPattern))
			for p := range st.ByPattern {
				patterns = append(patterns, p)
			}
			slices.Sort(patterns)
			for _, p := range patterns {
				fmt.Fprintf(out, "  %-12s %d\n", patternColor(p).Sprint(p), st.ByPattern[p])
			}
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		session, _ := cmd.Flags().GetString("session")

		var analyses []domain.Analysis
		if session != "" {
			analyses, err = repo.FindBySession(cmd.Context(), session, limit)
		} else {
			analyses, err = repo.FindAll(cmd.Context(), limit, 0)
		}
		if err != nil {
			return err
		}

		for _, a := range analyses {
			fmt.Fprintf(out, "%s  %-12s %5.1f%%  %s  %s\n",
				faint.Sprint(a.CreatedAt.Local().Format(time.DateTime)),
				patternColor(a.TopPattern).Sprint(a.TopPattern),
				a.TopScore()*100,
				faint.Sprint(a.Strategy),
				preview(a.Text, 60),
			)
		}
		return nil
	},
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of analyses to list")
	historyCmd.Flags().String("session", "", "only list analyses of this session")
	historyCmd.Flags().Bool("stats", false, "print counts per pattern instead")
	historyCmd.Flags().Int("days", 0, "with --stats, only count the last N days")
}
