package commands

import (
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/smartpdf/cmd/smartpdf/ui"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/pkg/converter"
)

var (
	historyLimit  int
	historyRun    string
	historyLedger string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent conversion runs from the ledger",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of runs to show")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the documents of this run")
	historyCmd.Flags().StringVar(&historyLedger, "ledger", "", "SQLite ledger file")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("ledger") {
		cfg.Ledger.Driver = "sqlite"
		cfg.Ledger.Path = historyLedger
	}

	logger := newLogger(cfg)
	ctx, cancel := signalContext(logger)
	defer cancel()

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	if historyRun != "" {
		docs, err := client.RunDocuments(ctx, historyRun)
		if err != nil {
			return historyError(err)
		}
		rows := make([][]string, 0, len(docs))
		for _, d := range docs {
			rows = append(rows, []string{d.Path, d.Engine, string(d.Route), ui.StatusLabel(d.Status), strconv.Itoa(d.Attempts), ui.FormatDuration(d.Elapsed), d.Output})
		}
		ui.Table([]string{"DOCUMENT", "ENGINE", "ROUTE", "STATUS", "ATTEMPTS", "ELAPSED", "OUTPUT"}, rows)
		return nil
	}

	runs, err := client.History(ctx, historyLimit)
	if err != nil {
		return historyError(err)
	}
	if len(runs) == 0 {
		ui.Info("no runs recorded")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "running"
		if r.FinishedAt != nil {
			finished = ui.FormatDuration(r.FinishedAt.Sub(r.StartedAt))
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Input,
			strconv.Itoa(r.Documents),
			strconv.Itoa(r.Failures),
			ui.StatusLabel(r.ExitCode),
			finished,
		})
	}
	ui.Table([]string{"RUN", "STARTED", "INPUT", "DOCS", "FAILED", "EXIT", "DURATION"}, rows)
	return nil
}

func historyError(err error) error {
	if errors.Is(err, converter.ErrNoLedger) {
		return usageError("no ledger configured: pass --ledger PATH or set ledger.driver")
	}
	return &ExitError{Code: int(domain.StatusUnhandled), Err: err}
}
