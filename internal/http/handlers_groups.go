package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	"susu/internal/core"
)

type groupRequest struct {
	Name            string              `json:"name" validate:"required,max=120"`
	Description     string              `json:"description" validate:"max=1000"`
	Contribution    decimal.Decimal     `json:"contribution"`
	MaxMembers      int                 `json:"maxMembers" validate:"gte=1"`
	StartMonth      string              `json:"startMonth" validate:"required,month"`
	EndMonth        string              `json:"endMonth" validate:"required,month"`
	DeadlineDay     *int                `json:"deadlineDay" validate:"omitempty,gte=1,lte=31"`
	LateFinePercent decimal.NullDecimal `json:"lateFinePercent"`
	LateFineAmount  decimal.NullDecimal `json:"lateFineAmount"`
}

func (req groupRequest) toGroup(id string) core.Group {
	// both months were checked by the validator
	start, _ := core.ParseMonth(req.StartMonth)
	end, _ := core.ParseMonth(req.EndMonth)
	return core.Group{
		ID:              id,
		Name:            sanitizeInput(req.Name),
		Description:     sanitizeInput(req.Description),
		Contribution:    req.Contribution,
		MaxMembers:      req.MaxMembers,
		StartMonth:      start,
		EndMonth:        end,
		DeadlineDay:     req.DeadlineDay,
		LateFinePercent: req.LateFinePercent,
		LateFineAmount:  req.LateFineAmount,
	}
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.svc.Groups.List(r.Context())
	if err != nil {
		s.fail(w, r, "list_groups", err)
		return
	}
	NewResponse().JSON(listBody(groups)).Write(w)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.fail(w, r, "create_group", err)
		return
	}
	g, err := s.svc.Groups.Create(r.Context(), req.toGroup(""))
	if err != nil {
		s.fail(w, r, "create_group", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/groups/"+g.ID).
		Trigger(TriggerGroupChanged, map[string]string{"groupId": g.ID}).
		JSON(g).
		Write(w)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Groups.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, "get_group", err)
		return
	}
	NewResponse().JSON(g).Write(w)
}

type groupUpdateResponse struct {
	Group   core.Group        `json:"group"`
	Orphans []core.Assignment `json:"orphans"`
}

// handleUpdateGroup replaces the group's attributes. Assignments left outside
// a shrunken range are reported, not removed.
func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.fail(w, r, "update_group", err)
		return
	}
	g, orphans, err := s.svc.Groups.Update(r.Context(), req.toGroup(pathID(r, "id")))
	if err != nil {
		s.fail(w, r, "update_group", err)
		return
	}
	if orphans == nil {
		orphans = []core.Assignment{}
	}
	NewResponse().
		Trigger(TriggerGroupChanged, map[string]string{"groupId": g.ID}).
		JSON(groupUpdateResponse{Group: g, Orphans: orphans}).
		Write(w)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if err := s.svc.Groups.Delete(r.Context(), id); err != nil {
		s.fail(w, r, "delete_group", err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		Trigger(TriggerGroupChanged, map[string]string{"groupId": id}).
		Write(w)
}

// handleGroupMonths is the slot-availability view of one group.
func (s *Server) handleGroupMonths(w http.ResponseWriter, r *http.Request) {
	slots, err := s.svc.Slots.GetAllMonths(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, "get_all_months", err)
		return
	}
	NewResponse().JSON(listBody(slots)).Write(w)
}

func (s *Server) handleGroupOrphans(w http.ResponseWriter, r *http.Request) {
	orphans, err := s.svc.Slots.Orphans(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, "orphans", err)
		return
	}
	NewResponse().JSON(listBody(orphans)).Write(w)
}

func (s *Server) handleGroupStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Analytics.GroupStats(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, "group_stats", err)
		return
	}
	NewResponse().JSON(stats).Write(w)
}
