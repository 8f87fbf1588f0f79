package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/slabworks/visualizer/internal/domain"
)

// FunnelEvents is the dashboard funnel, in order.
var FunnelEvents = []string{
	"visualizer_viewed",
	"kitchen_selected",
	"generation_completed",
	"lead_submitted",
}

const countCacheTTL = 5 * time.Minute

// AnalyticsUC serves funnel counts to the dashboard. Counts are memoized
// for a few minutes and concurrent identical reads collapse to one provider
// call, since several widgets request overlapping windows at once.
type AnalyticsUC struct {
	Source domain.AnalyticsSource

	cache *expirable.LRU[string, int64]
	group singleflight.Group
}

func NewAnalyticsUC(source domain.AnalyticsSource) *AnalyticsUC {
	return &AnalyticsUC{
		Source: source,
		cache:  expirable.NewLRU[string, int64](512, nil, countCacheTTL),
	}
}

func (uc *AnalyticsUC) Count(ctx context.Context, q domain.EventQuery) (int64, error) {
	key := cacheKey(q)
	if n, ok := uc.cache.Get(key); ok {
		return n, nil
	}
	v, err, _ := uc.group.Do(key, func() (any, error) {
		n, err := uc.Source.EventCount(ctx, q)
		if err != nil {
			return int64(0), err
		}
		uc.cache.Add(key, n)
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Funnel returns event→count for the standard funnel. A failing event read
// zeroes that step rather than failing the whole card.
func (uc *AnalyticsUC) Funnel(ctx context.Context, lineID string, days int, utmSource, utmCampaign string) (map[string]int64, error) {
	out := make(map[string]int64, len(FunnelEvents))
	var firstErr error
	for _, event := range FunnelEvents {
		n, err := uc.Count(ctx, domain.EventQuery{
			Event:          event,
			MaterialLineID: lineID,
			Days:           days,
			UTMSource:      utmSource,
			UTMCampaign:    utmCampaign,
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[event] = n
	}
	if len(out) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (uc *AnalyticsUC) RecentEvents(ctx context.Context, q domain.EventQuery, limit int) ([]map[string]any, error) {
	return uc.Source.EventMetadata(ctx, q, limit)
}

func cacheKey(q domain.EventQuery) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s", q.Event, q.MaterialLineID, q.Days, q.UTMSource, q.UTMCampaign)
}
