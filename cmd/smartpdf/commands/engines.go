package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spherical/smartpdf/cmd/smartpdf/ui"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List conversion engines and check that their tools are installed",
	Args:  cobra.NoArgs,
	RunE:  runEngines,
}

func runEngines(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	ctx, cancel := signalContext(logger)
	defer cancel()

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	spin := ui.NewSpinner("probing engines")
	spin.Start()
	probes := client.Probe()
	spin.Stop()

	rows := make([][]string, 0, len(probes))
	for _, name := range client.Engines() {
		status, detail := color.GreenString("available"), ""
		if err := probes[name]; err != nil {
			status, detail = color.RedString("unavailable"), err.Error()
		}
		if name == cfg.HeavyEngine {
			name += " (heavy default)"
		}
		rows = append(rows, []string{name, status, detail})
	}
	ui.Table([]string{"ENGINE", "STATUS", "DETAIL"}, rows)
	return nil
}
