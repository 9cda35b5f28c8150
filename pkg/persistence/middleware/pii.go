package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/easel/pkg/domain"
	"github.com/aretw0/easel/pkg/ports"
	"github.com/mohae/deepcopy"
)

// Mask replaces every value whose key matches a PII pattern.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SnapshotRepository
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of keys matching the patterns.
// It scans element data and every map-valued slice (page, ui, plugins, ...).
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotRepository) ports.SnapshotRepository {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	// The editor may still hold snap; mask a copy.
	cloned, _ := deepcopy.Copy(snap).(*domain.Snapshot)
	if cloned == nil {
		return m.next.Save(ctx, sessionID, snap)
	}

	for _, v := range cloned.Slices {
		switch typed := v.(type) {
		case domain.Elements:
			for id, el := range typed {
				if el.Data != nil {
					m.mask(el.Data)
					typed[id] = el
				}
			}
		case map[string]any:
			m.mask(typed)
		}
	}

	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(data map[string]any) {
	for k, v := range data {
		if m.matches(k) {
			data[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			m.mask(sub)
		}
	}
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
