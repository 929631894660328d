package http

import (
	"net/http"
)

type assignRequest struct {
	MemberID string `json:"memberId" validate:"required"`
	Month    string `json:"month" validate:"required,month"`
}

// handleAssign claims a month of the group for a member.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	groupID := pathID(r, "id")
	var req assignRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.fail(w, r, "assign", err)
		return
	}
	a, err := s.svc.Slots.Assign(r.Context(), groupID, sanitizeInput(req.MemberID), req.Month)
	if err != nil {
		s.fail(w, r, "assign", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		TriggerSlot(TriggerSlotAssigned, groupID, a.Month.String()).
		JSON(a).
		Write(w)
}

// handleUnassign releases one month (?month=YYYY-MM) or every month the
// member holds in the group.
func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	groupID := pathID(r, "id")
	month := optionalString(r, "month")
	n, err := s.svc.Slots.Unassign(r.Context(), groupID, pathID(r, "memberID"), month)
	if err != nil {
		s.fail(w, r, "unassign", err)
		return
	}
	resp := NewResponse().JSON(map[string]int{"removed": n})
	if n > 0 {
		label := ""
		if month != nil {
			label = *month
		}
		resp.TriggerSlot(TriggerSlotReleased, groupID, label)
	}
	resp.Write(w)
}
