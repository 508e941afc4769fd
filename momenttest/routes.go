package momenttest

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.injectFailures)

	r.Route("/api/v1", func(rr chi.Router) {
		rr.Route("/auth", func(ar chi.Router) {
			ar.Post("/send-otp/", s.sendOTP)
			ar.Post("/verify-otp/", s.verifyOTP)
			ar.Post("/refresh-token/", s.refreshToken)
			ar.Post("/logout/", s.logout)
		})

		rr.Get("/location/ws", s.socket)

		rr.Group(func(pr chi.Router) {
			pr.Use(s.requireBearer)

			pr.Route("/user/me", func(ur chi.Router) {
				ur.Get("/", s.me)
				ur.Delete("/", s.deactivate)
				ur.Patch("/profile/", s.patchSection("profile"))
				ur.Patch("/preferences/", s.patchSection("preferences"))
				ur.Patch("/change-email/", s.changeEmail)
				ur.Post("/profile-picture/", s.uploadPicture(false))
				ur.Get("/profile-picture/", s.downloadPicture(false))
				ur.Post("/session-picture/", s.uploadPicture(true))
				ur.Get("/session-picture/", s.downloadPicture(true))
			})

			pr.Post("/kyc/verify-license/", s.verifyLicense)
			pr.Get("/kyc/verify-license/status/", s.kycStatus)

			pr.Get("/location/eligibility/", s.eligibility)

			pr.Get("/notifications/", s.listNotifications)
			pr.Delete("/notifications/{id}/", s.deleteNotification)
			pr.Patch("/notifications/{id}/read/", s.markRead)
			pr.Get("/user-reviews/", s.listPrompts)
			pr.Post("/user-reviews/{matchIDToken}/", s.submitReview)
		})
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status, ok := s.failures[r.URL.Path]
		s.mu.Unlock()
		if ok {
			writeDetail(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !s.validAccess(raw) {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sendOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || (in.Email == "" && in.Phone == "") {
		writeDetail(w, http.StatusUnprocessableEntity, "email or phone required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"detail":     "OTP sent",
		"expires_at": time.Now().Add(5 * time.Minute).UTC().Format(time.RFC3339),
	})
}

func (s *Server) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OTP string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.OTP != OTP {
		writeDetail(w, http.StatusUnauthorized, "Invalid OTP")
		return
	}
	writeJSON(w, http.StatusOK, s.IssuePair())
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	delay, forced := s.refreshDelay, s.refreshStatus
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if forced != 0 {
		writeDetail(w, forced, http.StatusText(forced))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if in.RefreshToken == "" || in.RefreshToken != s.refresh || time.Now().Unix() >= s.refreshExpiresAt {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, s.issueLocked())
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.logouts.Add(1)
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	if in.RefreshToken == "" || in.RefreshToken != s.refresh {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	s.access, s.refresh, s.refreshExpiresAt = "", "", 0
	writeDetail(w, http.StatusOK, "Logged out")
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.state.userRead())
}

func (s *Server) deactivate(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.user["is_active"] = false
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) patchSection(section string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		target := s.state.profile
		if section == "preferences" {
			target = s.state.preferences
		}
		for k, v := range in {
			if v != nil {
				target[k] = v
			}
		}
		writeJSON(w, http.StatusOK, s.state.userRead())
	}
}

func (s *Server) changeEmail(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || !strings.Contains(in.Email, "@") {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid email")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.user["email"] = in.Email
	writeJSON(w, http.StatusOK, s.state.userRead())
}

func (s *Server) uploadPicture(session bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, header, err := r.FormFile("file")
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "file required")
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		pic := &picture{data: data, contentType: header.Header.Get("Content-Type")}

		s.mu.Lock()
		defer s.mu.Unlock()
		if session {
			s.state.sessionPicture = pic
			writeJSON(w, http.StatusOK, map[string]string{"filename": uuid.NewString() + "-" + header.Filename})
			return
		}
		s.state.profilePicture = pic
		writeJSON(w, http.StatusOK, s.state.userRead())
	}
}

func (s *Server) downloadPicture(session bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		pic := s.state.profilePicture
		if session {
			pic = s.state.sessionPicture
		}
		s.mu.Unlock()
		if pic == nil {
			writeDetail(w, http.StatusNotFound, "No picture")
			return
		}
		w.Header().Set("Content-Type", pic.contentType)
		_, _ = w.Write(pic.data)
	}
}

func (s *Server) verifyLicense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "multipart body required")
		return
	}
	for _, field := range []string{"licenseFront", "licenseBack", "selfie"} {
		if files := r.MultipartForm.File[field]; len(files) == 0 {
			writeDetail(w, http.StatusUnprocessableEntity, field+" required")
			return
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	s.mu.Lock()
	s.state.kyc = &kycRecord{ID: 1, Status: "pending", CreatedAt: now, UpdatedAt: now}
	s.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) kycStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.kyc == nil {
		writeDetail(w, http.StatusNotFound, "No verification submitted")
		return
	}
	writeJSON(w, http.StatusOK, s.state.kyc)
}

func (s *Server) eligibility(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.state.missing) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"missing": s.state.missing})
}

func (s *Server) listNotifications(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"notifications": s.state.notifications})
}

func (s *Server) findNotification(r *http.Request) int {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return -1
	}
	for i, n := range s.state.notifications {
		if n["id"] == id {
			return i
		}
	}
	return -1
}

func (s *Server) deleteNotification(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findNotification(r)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Notification not found")
		return
	}
	s.state.notifications = append(s.state.notifications[:i], s.state.notifications[i+1:]...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.findNotification(r)
	if i < 0 {
		writeDetail(w, http.StatusNotFound, "Notification not found")
		return
	}
	s.state.notifications[i]["is_read"] = true
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPrompts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"prompts": s.state.prompts})
}

func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AllowRematch bool `json:"allow_rematch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}
	matchID := chi.URLParam(r, "matchIDToken")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.decisions[matchID] = in.AllowRematch
	writeJSON(w, http.StatusOK, map[string]string{"message": "Review recorded"})
}

// Decision returns the review decision submitted for matchIDToken.
func (s *Server) Decision(matchIDToken string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state.decisions[matchIDToken]
	return v, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
