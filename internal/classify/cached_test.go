package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/smartpdf/internal/cache"
	"github.com/spherical/smartpdf/internal/domain"
)

type countingOpener struct {
	fakeOpener
	opens int
}

func (o *countingOpener) Open(path string) (domain.PageSource, error) {
	o.opens++
	return o.fakeOpener.Open(path)
}

func TestCachedReusesResult(t *testing.T) {
	opener := &countingOpener{fakeOpener: fakeOpener{src: &fakeSource{pages: pages(2, strings.Repeat("q", 150))}}}
	inner := New(opener, DefaultMinChars, DefaultMinRatio, nil)
	mem := cache.NewMemoryClient(10)
	fp := func(string) (string, error) { return "digest", nil }

	c := NewCached(inner, mem, time.Hour, fp, nil)

	first, err := c.Classify(context.Background(), "a.pdf")
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), "copy-of-a.pdf")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, opener.opens)
	assert.Equal(t, 1, mem.Len())
}

func TestCachedKeyIncludesThresholds(t *testing.T) {
	opener := &countingOpener{fakeOpener: fakeOpener{src: &fakeSource{pages: pages(1, strings.Repeat("q", 150))}}}
	mem := cache.NewMemoryClient(10)
	fp := func(string) (string, error) { return "digest", nil }

	strict := NewCached(New(opener, 500, 0.2, nil), mem, time.Hour, fp, nil)
	loose := NewCached(New(opener, 100, 0.2, nil), mem, time.Hour, fp, nil)

	res, err := strict.Classify(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.False(t, res.IsTextual)

	res, err = loose.Classify(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.True(t, res.IsTextual)
	assert.Equal(t, 2, opener.opens)
}

func TestCachedFallsThroughOnFingerprintError(t *testing.T) {
	opener := &countingOpener{fakeOpener: fakeOpener{src: &fakeSource{pages: pages(1, "x")}}}
	mem := cache.NewMemoryClient(10)
	fp := func(string) (string, error) { return "", errors.New("permission denied") }

	c := NewCached(New(opener, DefaultMinChars, DefaultMinRatio, nil), mem, time.Hour, fp, nil)
	_, err := c.Classify(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 0, mem.Len())
}

func TestNewCachedWithoutClient(t *testing.T) {
	inner := New(&fakeOpener{}, DefaultMinChars, DefaultMinRatio, nil)
	assert.Same(t, inner, NewCached(inner, nil, time.Hour, nil, nil))
}
