package ui

import (
	"path/filepath"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/spherical/smartpdf/internal/domain"
)

// BatchProgress renders one bar for the batch and one per document with
// page progress.
type BatchProgress struct {
	progress *mpb.Progress
	batch    *mpb.Bar
	docs     map[string]*mpb.Bar
}

// NewBatchProgress creates the multi-bar display.
func NewBatchProgress() *BatchProgress {
	return &BatchProgress{
		progress: mpb.New(mpb.WithOutput(stderr), mpb.WithWidth(48)),
		docs:     make(map[string]*mpb.Bar),
	}
}

// Consume renders events until the channel is closed, then waits for the
// display to flush.
func (b *BatchProgress) Consume(events <-chan domain.Event) {
	for ev := range events {
		b.handle(ev)
	}
	b.close()
}

func (b *BatchProgress) handle(ev domain.Event) {
	switch ev.Type {
	case domain.EventBatchStart:
		b.batch = b.progress.AddBar(int64(ev.Total),
			mpb.PrependDecorators(
				decor.Name("documents", decor.WC{W: 24, C: decor.DindentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 8}), " done"),
			),
		)

	case domain.EventPagesProgress:
		if ev.Pages <= 0 {
			return
		}
		bar, ok := b.docs[ev.Document]
		if !ok {
			name := filepath.Base(ev.Document)
			bar = b.progress.AddBar(int64(ev.Pages),
				mpb.PrependDecorators(
					decor.Name(name, decor.WC{W: 24, C: decor.DindentRight}),
					decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
				),
				mpb.AppendDecorators(
					decor.Name(ev.Engine+" ", decor.WC{W: 10}),
					decor.Percentage(decor.WC{W: 5}),
				),
			)
			b.docs[ev.Document] = bar
		}
		bar.SetCurrent(int64(ev.Done))

	case domain.EventDocumentComplete:
		if bar, ok := b.docs[ev.Document]; ok {
			if ev.Status == domain.StatusOK {
				bar.SetTotal(-1, true)
			} else {
				bar.Abort(false)
			}
			delete(b.docs, ev.Document)
		}
		if b.batch != nil {
			b.batch.Increment()
		}
	}
}

func (b *BatchProgress) close() {
	for path, bar := range b.docs {
		bar.Abort(false)
		delete(b.docs, path)
	}
	if b.batch != nil && !b.batch.Completed() {
		b.batch.Abort(false)
	}
	b.progress.Wait()
}
