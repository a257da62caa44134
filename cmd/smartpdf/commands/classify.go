package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical/smartpdf/cmd/smartpdf/ui"
	"github.com/spherical/smartpdf/internal/domain"
)

var (
	classifyMinChars int
	classifyMinRatio float64
)

var classifyCmd = &cobra.Command{
	Use:   "classify INPUT",
	Short: "Show how each PDF would be routed without converting it",
	Args:  cobra.ExactArgs(1),
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().IntVarP(&classifyMinChars, "min-chars", "c", 0, "non-whitespace characters for a page to count as textual")
	classifyCmd.Flags().Float64VarP(&classifyMinRatio, "min-ratio", "r", 0, "share of textual pages for a document to be textual")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("min-chars") {
		cfg.MinChars = classifyMinChars
	}
	if cmd.Flags().Changed("min-ratio") {
		cfg.MinRatio = classifyMinRatio
	}

	logger := newLogger(cfg)
	ctx, cancel := signalContext(logger)
	defer cancel()

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	files, err := client.Discover(args[0])
	if err != nil {
		return &ExitError{Code: int(domain.StatusInputNotFound), Err: err}
	}
	if len(files) == 0 {
		return &ExitError{Code: int(domain.StatusInputNotFound), Err: fmt.Errorf("no PDF files found at %s", args[0])}
	}

	bar := ui.NewProgressBar(int64(len(files)), "classifying")
	rows := make([][]string, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return &ExitError{Code: int(domain.StatusUnhandled), Err: err}
		}

		res, err := client.Classify(ctx, path)
		bar.Set(int64(i + 1))
		if err != nil {
			rows = append(rows, []string{path, "-", "-", "-", "unreadable", cfg.HeavyEngine})
			continue
		}

		verdict, route := "non-textual", cfg.HeavyEngine
		if res.IsTextual {
			verdict, route = "textual", "fast"
		}
		rows = append(rows, []string{
			path,
			strconv.Itoa(res.PagesConsidered),
			strconv.Itoa(res.QualifyingPages),
			fmt.Sprintf("%.2f", res.Ratio()),
			verdict,
			route,
		})
	}
	bar.Finish()

	ui.Table([]string{"DOCUMENT", "PAGES", "TEXTUAL PAGES", "RATIO", "VERDICT", "ENGINE"}, rows)
	return nil
}
