package cache

import (
	"context"
	"log/slog"

	"github.com/dshills/scribe/internal/redact"
)

// Scanner runs the redaction engine through the cache. A nil or disabled
// cache makes it a plain pass-through.
type Scanner struct {
	Engine *redact.Engine
	Cache  *Cache
	Logger *slog.Logger
}

// Scan returns the redaction result for text, scanning only on a miss.
// Detections are tagged with field.
func (s *Scanner) Scan(ctx context.Context, field, text string) redact.Result {
	if s.Cache == nil || !s.Cache.Enabled() {
		return s.scan(field, text)
	}
	key := Key{Fingerprint: s.Fingerprint(), Field: field, Text: text}
	if res, ok := s.Cache.Get(key); ok {
		return res
	}
	res := s.scan(field, text)
	if err := s.Cache.Put(ctx, key, res); err != nil && s.Logger != nil {
		s.Logger.Warn("caching redaction result", "field", field, "error", err)
	}
	return res
}

// Fingerprint identifies the engine's rule set.
func (s *Scanner) Fingerprint() string {
	if s.Engine.Registry == nil {
		return redact.DefaultRegistry().Fingerprint()
	}
	return s.Engine.Registry.Fingerprint()
}

func (s *Scanner) scan(field, text string) redact.Result {
	res := s.Engine.ScanAndRedact(text)
	for i := range res.Detections {
		res.Detections[i].Field = field
	}
	return res
}
