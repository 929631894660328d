package http

import (
	"net/http"
	"time"

	"susu/internal/core"
	"susu/internal/services"
	"susu/internal/store"
)

type paymentRequest struct {
	GroupID      string     `json:"groupId" validate:"required"`
	MemberID     string     `json:"memberId" validate:"required"`
	Month        string     `json:"month" validate:"required,month"`
	PaidAt       *time.Time `json:"paidAt"`
	Method       string     `json:"method" validate:"required,oneof=cash bank_transfer"`
	Status       string     `json:"status" validate:"omitempty,oneof=not_paid pending received settled"`
	SenderBank   string     `json:"senderBank" validate:"max=120"`
	ReceiverBank string     `json:"receiverBank" validate:"max=120"`
	Notes        string     `json:"notes" validate:"max=1000"`
}

func (req paymentRequest) toInput() services.PaymentInput {
	in := services.PaymentInput{
		GroupID:      sanitizeInput(req.GroupID),
		MemberID:     sanitizeInput(req.MemberID),
		Month:        req.Month,
		Method:       core.PaymentMethod(req.Method),
		Status:       core.PaymentStatus(req.Status),
		SenderBank:   sanitizeInput(req.SenderBank),
		ReceiverBank: sanitizeInput(req.ReceiverBank),
		Notes:        sanitizeInput(req.Notes),
	}
	if req.PaidAt != nil {
		in.PaidAt = *req.PaidAt
	}
	return in
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=not_paid pending received settled"`
}

// handleListPayments filters by groupId, memberId, month and status.
func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	month, err := OptionalMonth(r, "month")
	if err != nil {
		s.fail(w, r, "list_payments", err)
		return
	}
	payments, err := s.svc.Payments.List(r.Context(), store.PaymentFilter{
		GroupID:  QueryString(r, "groupId"),
		MemberID: QueryString(r, "memberId"),
		Month:    month,
		Status:   core.PaymentStatus(QueryString(r, "status")),
	})
	if err != nil {
		s.fail(w, r, "list_payments", err)
		return
	}
	NewResponse().JSON(listBody(payments)).Write(w)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.fail(w, r, "record_payment", err)
		return
	}
	p, err := s.svc.Payments.Record(r.Context(), req.toInput())
	if err != nil {
		s.fail(w, r, "record_payment", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/payments/"+p.ID).
		Trigger(TriggerPaymentChanged, map[string]string{"paymentId": p.ID, "status": string(p.Status)}).
		JSON(p).
		Write(w)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Payments.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		s.fail(w, r, "get_payment", err)
		return
	}
	NewResponse().JSON(p).Write(w)
}

func (s *Server) handleUpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.fail(w, r, "update_payment_status", err)
		return
	}
	p, err := s.svc.Payments.UpdateStatus(r.Context(), pathID(r, "id"), core.PaymentStatus(req.Status))
	if err != nil {
		s.fail(w, r, "update_payment_status", err)
		return
	}
	NewResponse().
		Trigger(TriggerPaymentChanged, map[string]string{"paymentId": p.ID, "status": string(p.Status)}).
		JSON(p).
		Write(w)
}
