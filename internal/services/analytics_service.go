package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"susu/internal/cache"
	"susu/internal/core"
	"susu/internal/store"
)

// maxStatsWorkers bounds the per-group fan-out.
const maxStatsWorkers = 8

// AnalyticsService builds the dashboard summaries.
type AnalyticsService struct {
	reads
	now func() time.Time
}

func NewAnalyticsService(st store.Store, c *cache.ReadThrough) *AnalyticsService {
	return &AnalyticsService{reads: reads{st: st, cache: c}, now: utcNow}
}

// Dashboard computes the stats of every group concurrently and totals them.
func (s *AnalyticsService) Dashboard(ctx context.Context) (core.Dashboard, error) {
	return cache.Fetch(ctx, s.cache, cache.Key(EntityDashboard, nil), s.buildDashboard)
}

// GroupStats summarises one group.
func (s *AnalyticsService) GroupStats(ctx context.Context, groupID string) (core.GroupStats, error) {
	if groupID == "" {
		return core.GroupStats{}, core.Invalid("groupId", "is required")
	}
	g, err := s.group(ctx, groupID)
	if err != nil {
		return core.GroupStats{}, err
	}
	return s.statsFor(ctx, g)
}

func (s *AnalyticsService) statsFor(ctx context.Context, g core.Group) (core.GroupStats, error) {
	assignments, err := s.assignments(ctx, store.AssignmentFilter{GroupID: g.ID})
	if err != nil {
		return core.GroupStats{}, fmt.Errorf("group %s assignments: %w", g.ID, err)
	}
	payments, err := s.payments(ctx, store.PaymentFilter{GroupID: g.ID})
	if err != nil {
		return core.GroupStats{}, fmt.Errorf("group %s payments: %w", g.ID, err)
	}
	return core.ComputeGroupStats(g, assignments, payments), nil
}

func (s *AnalyticsService) buildDashboard(ctx context.Context) (core.Dashboard, error) {
	groups, err := s.groups(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}
	members, err := s.members(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}

	stats := make([]core.GroupStats, len(groups))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxStatsWorkers)
	for i, g := range groups {
		eg.Go(func() error {
			st, err := s.statsFor(egCtx, g)
			if err != nil {
				return err
			}
			stats[i] = st
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return core.Dashboard{}, err
	}

	d := core.Dashboard{
		Groups:       stats,
		TotalGroups:  len(groups),
		TotalMembers: len(members),
		Expected:     decimal.Zero,
		Collected:    decimal.Zero,
		Outstanding:  decimal.Zero,
		Fines:        decimal.Zero,
		GeneratedAt:  s.now(),
	}
	for _, st := range stats {
		d.Expected = d.Expected.Add(st.Expected)
		d.Collected = d.Collected.Add(st.Collected)
		d.Outstanding = d.Outstanding.Add(st.Outstanding)
		d.Fines = d.Fines.Add(st.Fines)
	}
	return d, nil
}
