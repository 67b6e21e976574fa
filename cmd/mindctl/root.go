package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mindpattern/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "mindctl",
	Short:        "Operate the mindpattern classifier",
	Long:         "mindctl runs predictions locally and inspects models and stored analyses.",
	SilenceUsage: true,
}

var (
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
	okay   = color.New(color.FgGreen, color.Bold)
	failed = color.New(color.FgRed, color.Bold)
)

var patternColors = map[string]*color.Color{
	"Anxiety":    color.New(color.FgYellow, color.Bold),
	"Depression": color.New(color.FgBlue, color.Bold),
	"Bipolar":    color.New(color.FgMagenta, color.Bold),
	"ADHD":       color.New(color.FgCyan, color.Bold),
	"Stress":     color.New(color.FgRed, color.Bold),
	"Neutral":    color.New(color.FgGreen, color.Bold),
}

func patternColor(label string) *color.Color {
	if c, ok := patternColors[label]; ok {
		return c
	}
	return bold
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to the config file (overrides MINDPATTERN_CONFIG)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if off, _ := cmd.Flags().GetBool("no-color"); off {
			color.NoColor = true
		}
	}

	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the --config flag (highest priority), then
// MINDPATTERN_CONFIG, then the default path.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.Path()
	}
	return config.Load(path)
}
