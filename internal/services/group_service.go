package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"susu/internal/cache"
	"susu/internal/core"
	"susu/internal/log"
	"susu/internal/store"
)

// GroupService manages savings groups.
type GroupService struct {
	reads
	now func() time.Time
}

func NewGroupService(st store.Store, c *cache.ReadThrough) *GroupService {
	return &GroupService{reads: reads{st: st, cache: c}, now: utcNow}
}

func (s *GroupService) Create(ctx context.Context, g core.Group) (core.Group, error) {
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}
	g.ID = uuid.NewString()
	g.CreatedAt = s.now()
	g.UpdatedAt = g.CreatedAt
	if err := s.st.CreateGroup(ctx, g); err != nil {
		return core.Group{}, err
	}
	s.invalidate(EntityGroups, EntityDashboard)
	slog.InfoContext(ctx, "Group created", log.FieldGroupID, g.ID, "name", g.Name)
	return g, nil
}

// Update replaces the group's attributes. Claims that fall outside a narrowed
// range are kept and returned so the caller can reconcile them.
func (s *GroupService) Update(ctx context.Context, g core.Group) (core.Group, []core.Assignment, error) {
	if g.ID == "" {
		return core.Group{}, nil, core.Invalid("id", "is required")
	}
	if err := g.Validate(); err != nil {
		return core.Group{}, nil, err
	}
	current, err := s.st.GetGroup(ctx, g.ID)
	if err != nil {
		return core.Group{}, nil, err
	}
	g.CreatedAt = current.CreatedAt
	g.UpdatedAt = s.now()
	if err := s.st.UpdateGroup(ctx, g); err != nil {
		return core.Group{}, nil, err
	}
	s.invalidate(EntityGroups, EntityAssignments, EntityDashboard)

	assignments, err := s.st.ListAssignments(ctx, store.AssignmentFilter{GroupID: g.ID})
	if err != nil {
		return g, nil, err
	}
	orphans := core.OrphanedAssignments(g, assignments)
	if len(orphans) > 0 {
		months := make([]string, len(orphans))
		for i, a := range orphans {
			months[i] = a.Month.String()
		}
		slog.WarnContext(ctx, "Group range leaves assignments outside it",
			log.FieldGroupID, g.ID,
			"range", g.StartMonth.String()+".."+g.EndMonth.String(),
			"orphaned_months", months)
	}
	return g, orphans, nil
}

// Delete removes the group with its assignments and payments.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return core.Invalid("id", "is required")
	}
	if err := s.st.DeleteGroup(ctx, id); err != nil {
		return err
	}
	s.invalidate(EntityGroups, EntityAssignments, EntityPayments, EntityDashboard)
	slog.InfoContext(ctx, "Group deleted", log.FieldGroupID, id)
	return nil
}

func (s *GroupService) Get(ctx context.Context, id string) (core.Group, error) {
	if id == "" {
		return core.Group{}, core.Invalid("id", "is required")
	}
	return s.group(ctx, id)
}

func (s *GroupService) List(ctx context.Context) ([]core.Group, error) {
	return s.groups(ctx)
}
