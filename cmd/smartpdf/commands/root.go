package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/smartpdf/cmd/smartpdf/ui"
)

var (
	cfgFile          string
	envPairs         []string
	noWarnUnknownEnv bool
	logLevel         string
	logJSON          bool
	logFile          string
	noColor          bool
)

var rootCmd = &cobra.Command{
	Use:   "smartpdf",
	Short: "Adaptive PDF to Markdown batch converter",
	Long: `smartpdf converts PDF files to Markdown. Documents with a usable text layer
take the fast path; scanned or layout-heavy documents go to a heavy engine,
which is driven slice by slice and retried with smaller slices on failure.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Init(noColor)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "C", "", "config file (yaml, toml or json)")
	pf.StringArrayVar(&envPairs, "env", nil, "set an environment variable KEY=VAL before loading config (repeatable)")
	pf.BoolVar(&noWarnUnknownEnv, "no-warn-unknown-env", false, "do not warn about unknown --env keys")
	pf.StringVarP(&logLevel, "log-level", "L", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&logJSON, "log-json", false, "emit JSON logs")
	pf.StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(convertCmd, classifyCmd, enginesCmd, historyCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
