package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/rendis/erdstudio/internal/logging"
	"github.com/rendis/erdstudio/internal/pipeline"
)

type ctxKey struct{}

// withSession resolves the browser session cookie to its controller,
// issuing a new session on first contact.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessionStore.Get(r, sessionCookie)
		if err != nil {
			// Tampered or stale cookie: Get still returns a fresh session.
			s.logger.Debug("session cookie rejected", "error", err)
		}

		id, _ := sess.Values[sessionKey].(string)
		if id == "" {
			id = uuid.NewString()
			sess.Values[sessionKey] = id
			if err := sess.Save(r, w); err != nil {
				s.logger.Error("session save failed", "error", err)
				writeError(w, err, nil)
				return
			}
		}

		ctrl, err := s.cfg.Sessions.Get(id)
		if err != nil {
			writeError(w, err, nil)
			return
		}

		ctx := logging.WithSessionID(r.Context(), id)
		ctx = context.WithValue(ctx, ctxKey{}, ctrl)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func controllerFrom(r *http.Request) *pipeline.Controller {
	ctrl, _ := r.Context().Value(ctxKey{}).(*pipeline.Controller)
	return ctrl
}
