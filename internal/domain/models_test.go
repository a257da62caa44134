package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"AUTO", ModeAuto, false},
		{"fast", ModeFast, false},
		{"heavy", ModeHeavy, false},
		{"marker", ModeHeavy, false},
		{"turbo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsType(err, ErrorTypeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputFormatExtension(t *testing.T) {
	f, err := ParseOutputFormat("TXT")
	require.NoError(t, err)
	assert.Equal(t, ".txt", f.Extension())

	f, err = ParseOutputFormat("")
	require.NoError(t, err)
	assert.Equal(t, ".md", f.Extension())

	_, err = ParseOutputFormat("docx")
	assert.Error(t, err)
}

func TestPageRange(t *testing.T) {
	r := PageRange{Start: 40, End: 79}
	assert.Equal(t, 40, r.Len())
	assert.Equal(t, "40-79", r.String())
}

func TestDocumentOutputDir(t *testing.T) {
	in := filepath.Join("reports", "q3.final.pdf")

	doc := NewDocument(in, "")
	assert.Equal(t, "reports", doc.OutputDir)
	assert.Equal(t, "q3.final", doc.Stem())
	assert.Equal(t, filepath.Join("reports", "q3.final.md"), doc.OutputPath(".md"))

	doc = NewDocument(in, "out")
	assert.Equal(t, filepath.Join("out", "q3.final.txt"), doc.OutputPath(".txt"))
}

func TestDocumentCachesClassificationOnce(t *testing.T) {
	doc := NewDocument("a.pdf", "")
	assert.Nil(t, doc.Classification())

	doc.SetClassification(ClassificationResult{IsTextual: true, PagesConsidered: 2, QualifyingPages: 2})
	doc.SetClassification(ClassificationResult{IsTextual: false})

	require.NotNil(t, doc.Classification())
	assert.True(t, doc.Classification().IsTextual)

	_, known := doc.PageCount()
	assert.False(t, known)
	doc.SetPageCount(0)
	n, known := doc.PageCount()
	assert.True(t, known)
	assert.Zero(t, n)
}

func TestClassificationRatio(t *testing.T) {
	assert.Zero(t, ClassificationResult{}.Ratio())
	assert.InDelta(t, 0.25, ClassificationResult{PagesConsidered: 8, QualifyingPages: 2}.Ratio(), 1e-9)
}

func TestBatchFinalizeUsesFirstFailureInInputOrder(t *testing.T) {
	b := &BatchResult{Results: []DocumentResult{
		{Path: "a.pdf", Status: StatusOK},
		{Path: "b.pdf", Status: StatusSinglePassFailed},
		{Path: "c.pdf", Status: StatusSliceExhausted},
		{Path: "d.pdf", Status: StatusOK},
	}}
	b.Finalize()

	assert.Equal(t, StatusSinglePassFailed, b.ExitCode)
	assert.Equal(t, 2, b.FailureCount)
}

func TestBatchFinalizeAllSuccess(t *testing.T) {
	b := &BatchResult{Results: []DocumentResult{{Status: StatusOK}, {Status: StatusOK}}}
	b.Finalize()
	assert.Equal(t, StatusOK, b.ExitCode)
	assert.Zero(t, b.FailureCount)
}

func TestStatusCodeString(t *testing.T) {
	assert.Equal(t, "slice-exhausted", StatusSliceExhausted.String())
	assert.Equal(t, "status-7", StatusCode(7).String())
}

func TestIsTypeWalksWrappedChain(t *testing.T) {
	inner := UnreadableDocumentError("x.pdf", errors.New("bad xref"))
	outer := UnhandledError("processing failed", fmt.Errorf("route: %w", inner))

	assert.True(t, IsType(outer, ErrorTypeUnhandled))
	assert.True(t, IsType(outer, ErrorTypeUnreadable))
	assert.False(t, IsType(outer, ErrorTypeTimeout))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeUnhandled))
}

func TestDomainErrorMessage(t *testing.T) {
	err := SliceExhaustedError(PageRange{Start: 0, End: 4}, 5, nil)
	assert.Equal(t, "[slice_exhausted] slice 0-4 failed at minimum slice size 5", err.Error())

	wrapped := EngineFailure("marker exited 1", errors.New("boom"))
	assert.Equal(t, "[engine] marker exited 1: boom", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "boom")
}
