package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindpattern/internal/model"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Load the configured models and report their status",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		resolver, err := model.NewResolver(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		st := resolver.Status()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "%s %s\n", bold.Sprint("active:"), st.Active)
		for _, s := range st.Strategies {
			mark := okay.Sprint("loaded")
			if !s.Loaded {
				mark = failed.Sprint("unavailable")
			}
			fmt.Fprintf(out, "  %-8s %s %v\n", s.Name, mark, s.Labels)
			if s.Error != "" {
				fmt.Fprintf(out, "           %s\n", faint.Sprint(s.Error))
			}
			for k, v := range s.Details {
				fmt.Fprintf(out, "           %s: %v\n", k, v)
			}
		}
		fmt.Fprintf(out, "%s %s %v\n", bold.Sprint("fallback:"), st.Fallback, st.FallbackLabels)
		return nil
	},
}
