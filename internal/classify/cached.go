package classify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/spherical/smartpdf/internal/cache"
	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
)

// FingerprintFunc returns a content digest for a document path.
type FingerprintFunc func(path string) (string, error)

// Cached wraps a Classifier with a content-addressed result cache. Cache
// failures fall through to the inner classifier.
type Cached struct {
	inner       *Classifier
	cache       cache.Client
	ttl         time.Duration
	fingerprint FingerprintFunc
	logger      *observability.Logger
}

// NewCached returns inner unchanged when client is nil.
func NewCached(inner *Classifier, client cache.Client, ttl time.Duration, fp FingerprintFunc, logger *observability.Logger) domain.Classifier {
	if client == nil {
		return inner
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Cached{
		inner:       inner,
		cache:       client,
		ttl:         ttl,
		fingerprint: fp,
		logger:      logger.WithComponent("classify.cache"),
	}
}

// Classify returns a cached result when the document content and thresholds
// match a previous run.
func (c *Cached) Classify(ctx context.Context, path string) (domain.ClassificationResult, error) {
	digest, err := c.fingerprint(path)
	if err != nil {
		return c.inner.Classify(ctx, path)
	}

	minChars, minRatio := c.inner.Thresholds()
	key := cache.Key("classify", digest,
		strconv.Itoa(minChars),
		strconv.FormatFloat(minRatio, 'f', -1, 64))

	if raw, err := c.cache.Get(ctx, key); err == nil {
		var res domain.ClassificationResult
		if err := json.Unmarshal(raw, &res); err == nil {
			c.logger.Debug().Str("document", path).Msg("classification cache hit")
			return res, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn().Err(err).Str("document", path).Msg("classification cache read failed")
	}

	res, err := c.inner.Classify(ctx, path)
	if err != nil {
		return res, err
	}

	if raw, err := json.Marshal(res); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("document", path).Msg("classification cache write failed")
		}
	}
	return res, nil
}
