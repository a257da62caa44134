package engine

import (
	"context"
	"fmt"

	"github.com/spherical/smartpdf/internal/domain"
)

// MockName is the registry name that always resolves to the mock engine.
const MockName = "mock"

// Mock stands in for marker: it writes a short deterministic Markdown file
// and can be told to fail.
type Mock struct {
	name string
	// Fail makes every invocation fail.
	Fail bool
	// FailIfSliceGT makes slices longer than this many pages fail. Zero
	// disables it.
	FailIfSliceGT int
}

// NewMock creates a mock engine that registers under name.
func NewMock(name string, fail bool, failIfSliceGT int) *Mock {
	if name == "" {
		name = MockName
	}
	return &Mock{name: name, Fail: fail, FailIfSliceGT: failIfSliceGT}
}

func (m *Mock) Name() string            { return m.name }
func (m *Mock) Kind() domain.EngineKind { return domain.KindHeavy }

func (m *Mock) Convert(ctx context.Context, task domain.ConversionTask) (domain.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return failed(1, "%v", err), nil
	}

	note := "mock marker single-pass"
	if task.Range != nil {
		r := *task.Range
		if m.FailIfSliceGT > 0 && r.Len() > m.FailIfSliceGT {
			return failed(1, "mock failure: slice %s exceeds %d pages", r, m.FailIfSliceGT), nil
		}
		note = fmt.Sprintf("mock marker slice %s", r)
	}
	if m.Fail {
		return failed(1, "mock failure"), nil
	}

	dir, err := scratchDir(task)
	if err != nil {
		return domain.Outcome{}, err
	}
	content := fmt.Sprintf("# MOCK MARKER OUTPUT\n%s\nSource: %s\n", note, task.Document.Path)
	path, err := writeArtifact(dir, task.Document, content)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{Succeeded: true, ArtifactPath: path}, nil
}
