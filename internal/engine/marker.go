package engine

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/spherical/smartpdf/internal/config"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
)

// MarkerName is the registry name of the marker engine.
const MarkerName = "marker"

// wholeDocumentRange is passed to marker for single-pass conversions.
const wholeDocumentRange = "0-999999"

// Marker runs the marker_single converter as a subprocess.
type Marker struct {
	command string
	extra   []string
	logger  *observability.Logger
}

// NewMarker creates the marker engine from its command settings.
func NewMarker(cfg config.CommandConfig, logger *observability.Logger) *Marker {
	if logger == nil {
		logger = observability.Nop()
	}
	cmd := cfg.Command
	if cmd == "" {
		cmd = "marker_single"
	}
	return &Marker{command: cmd, extra: cfg.Args, logger: logger.WithComponent("engine.marker")}
}

func (m *Marker) Name() string            { return MarkerName }
func (m *Marker) Kind() domain.EngineKind { return domain.KindHeavy }

// Available checks that the marker executable is on PATH.
func (m *Marker) Available() error {
	return lookPath(m.command)
}

// Args builds marker's argument list for a task writing into outDir.
func (m *Marker) Args(task domain.ConversionTask, outDir string) []string {
	opts := task.Options
	args := []string{task.Document.Path, "--output_format", "markdown"}
	if !opts.ImagesEnabled {
		args = append(args, "--disable_image_extraction")
	}

	pageRange := wholeDocumentRange
	if task.Range != nil {
		pageRange = task.Range.String()
	}
	args = append(args,
		"--page_range", pageRange,
		"--output_dir", outDir,
		"--lowres_image_dpi", strconv.Itoa(opts.LowResDPI),
		"--highres_image_dpi", strconv.Itoa(opts.HighResDPI),
	)
	return append(args, m.extra...)
}

// Convert runs marker into the task's work directory and returns the newest
// Markdown file it produced.
func (m *Marker) Convert(ctx context.Context, task domain.ConversionTask) (domain.Outcome, error) {
	dir, err := scratchDir(task)
	if err != nil {
		return domain.Outcome{}, err
	}

	cmd := command{Name: m.command, Args: m.Args(task, dir)}
	m.logger.Info().Str("document", task.Document.Path).Str("command", cmd.String()).Msg("running marker")

	out := runCommand(ctx, cmd)
	if !out.Succeeded {
		return out, nil
	}

	artifact, err := newestMarkdown(dir)
	if err != nil {
		return failed(1, "%v", err), nil
	}
	out.ArtifactPath = artifact
	if task.Options.ImagesEnabled {
		if out.Assets, err = collectAssets(filepath.Dir(artifact), artifact); err != nil {
			return domain.Outcome{}, err
		}
	}
	return out, nil
}
