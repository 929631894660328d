package http

import (
	"net/http"

	"susu/internal/core"
)

type memberRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	Phone         string `json:"phone" validate:"max=40"`
	Email         string `json:"email" validate:"omitempty,email"`
	Address       string `json:"address" validate:"max=300"`
	BankName      string `json:"bankName" validate:"max=120"`
	AccountNumber string `json:"accountNumber" validate:"max=60"`
}

func (req memberRequest) toMember(id string) core.Member {
	return core.Member{
		ID:            id,
		Name:          sanitizeInput(req.Name),
		Phone:         sanitizeInput(req.Phone),
		Email:         sanitizeInput(req.Email),
		Address:       sanitizeInput(req.Address),
		BankName:      sanitizeInput(req.BankName),
		AccountNumber: sanitizeInput(req.AccountNumber),
	}
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.Members.List(r.Context())
	if err != nil {
		s.fail(w, r, "list_members", err)
		return
	}
	NewResponse().JSON(listBody(members)).Write(w)
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.fail(w, r, "create_member", err)
		return
	}
	m, err := s.svc.Members.Create(r.Context(), req.toMember(""))
	if err != nil {
		s.fail(w, r, "create_member", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/members/"+m.ID).
		Trigger(TriggerMemberChanged, map[string]string{"memberId": m.ID}).
		JSON(m).
		Write(w)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Members.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, "get_member", err)
		return
	}
	NewResponse().JSON(m).Write(w)
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.fail(w, r, "update_member", err)
		return
	}
	m, err := s.svc.Members.Update(r.Context(), req.toMember(pathID(r, "id")))
	if err != nil {
		s.fail(w, r, "update_member", err)
		return
	}
	NewResponse().
		Trigger(TriggerMemberChanged, map[string]string{"memberId": m.ID}).
		JSON(m).
		Write(w)
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if err := s.svc.Members.Delete(r.Context(), id); err != nil {
		s.fail(w, r, "delete_member", err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		Trigger(TriggerMemberChanged, map[string]string{"memberId": id}).
		Write(w)
}

func (s *Server) handleMemberAssignments(w http.ResponseWriter, r *http.Request) {
	as, err := s.svc.Members.Assignments(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, "member_assignments", err)
		return
	}
	NewResponse().JSON(listBody(as)).Write(w)
}

// handleRefreshMemberTotals recomputes the derived totals from stored payments.
func (s *Server) handleRefreshMemberTotals(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Members.RefreshTotals(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, "refresh_member_totals", err)
		return
	}
	NewResponse().
		Trigger(TriggerMemberChanged, map[string]string{"memberId": m.ID}).
		JSON(m).
		Write(w)
}

func (s *Server) handleMemberMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.svc.Members.Messages(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, "member_messages", err)
		return
	}
	NewResponse().JSON(listBody(msgs)).Write(w)
}

func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Members.MarkMessageRead(r.Context(), pathID(r, "id")); err != nil {
		s.fail(w, r, "mark_message_read", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
