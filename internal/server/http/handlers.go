package httpserver

import (
	"net/http"

	"github.com/and161185/account-keeper/internal/convert"
	"github.com/and161185/account-keeper/internal/errs"
)

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req convert.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.ToAuth(res.User, res.Tokens))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req convert.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tok, u, err := h.auth.Login(r.Context(), req.Email, req.Password, h.clientIP(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToAuth(u, tok))
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	id, _ := userIDFrom(r.Context())
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToUser(u))
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var req convert.UpdateUserRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ver, patch, err := req.Patch()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, _ := userIDFrom(r.Context())
	u, err := h.users.Update(r.Context(), id, ver, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToUser(u))
}

// deleteMe takes the observed version from the "version" query parameter. Without it
// the delete is unconditional. The response carries the version a restore needs.
func (h *Handler) deleteMe(w http.ResponseWriter, r *http.Request) {
	ver, err := convert.ParseVersion(r.URL.Query().Get("version"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, _ := userIDFrom(r.Context())
	u, err := h.users.Delete(r.Context(), id, ver)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToUser(u))
}

func (h *Handler) restoreMe(w http.ResponseWriter, r *http.Request) {
	var req convert.VersionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ver, err := convert.ParseVersion(req.Version)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if ver.IsNil() {
		h.writeError(w, r, errs.New(errs.KindInvalidRequest, "version is required"))
		return
	}
	id, _ := userIDFrom(r.Context())
	u, err := h.users.Restore(r.Context(), id, ver)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.ToUser(u))
}
