package http

import (
	"net/http"

	"susu/internal/core"
	authmw "susu/internal/middleware/auth"
)

type userRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"max=120"`
	Password    string `json:"password" validate:"required"`
	Role        string `json:"role" validate:"omitempty,oneof=admin viewer"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.List(r.Context())
	if err != nil {
		s.fail(w, r, "list_users", err)
		return
	}
	NewResponse().JSON(listBody(users)).Write(w)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := DecodeJSON(r, &req); err != nil {
		s.fail(w, r, "create_user", err)
		return
	}
	u, err := s.svc.Users.Register(r.Context(), req.Email, sanitizeInput(req.DisplayName), req.Password, core.Role(req.Role))
	if err != nil {
		s.fail(w, r, "create_user", err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/users/"+u.ID).
		Trigger(TriggerUserChanged, map[string]string{"userId": u.ID}).
		JSON(u).
		Write(w)
}

// handleDeleteUser refuses to remove the caller's own account.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := pathID(r, "id")
	if id == authmw.GetUserID(r.Context()) {
		s.fail(w, r, "delete_user", core.Invalid("id", "cannot delete your own account"))
		return
	}
	if err := s.svc.Users.Delete(r.Context(), id); err != nil {
		s.fail(w, r, "delete_user", err)
		return
	}
	NewResponse().
		Status(http.StatusNoContent).
		Trigger(TriggerUserChanged, map[string]string{"userId": id}).
		Write(w)
}
