package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/go-session/session/v3"
)

// Session keys.
const (
	sessionUserID   = "user_id"
	sessionUsername = "username"
)

var sessionOnce sync.Once

// initSessions configures the process-wide session manager once.
func initSessions(cfg SessionConfig) {
	sessionOnce.Do(func() {
		session.InitManager(
			session.SetCookieName(cfg.CookieName),
			session.SetExpired(int64(cfg.TTL.Seconds())),
			session.SetCookieLifeTime(int(cfg.TTL.Seconds())),
			session.SetSecure(cfg.Secure),
		)
	})
}

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID   string
	Username string
	// Via is "jwt" or "session".
	Via string
}

// startSession stores identity in a server-side session, creating one when needed.
func startSession(ctx context.Context, w http.ResponseWriter, r *http.Request, id Identity) error {
	store, err := session.Start(ctx, w, r)
	if err != nil {
		return err
	}
	store.Set(sessionUserID, id.UserID)
	store.Set(sessionUsername, id.Username)
	return store.Save()
}

// sessionIdentity reads the identity held by the request's session cookie. ok is false when
// no cookie is present or the session holds no user.
func (s *Server) sessionIdentity(ctx context.Context, w http.ResponseWriter, r *http.Request) (Identity, bool) {
	if _, err := r.Cookie(s.Config.Session.CookieName); err != nil {
		return Identity{}, false
	}
	store, err := session.Start(ctx, w, r)
	if err != nil {
		return Identity{}, false
	}
	uid, _ := store.Get(sessionUserID)
	userID, _ := uid.(string)
	if userID == "" {
		return Identity{}, false
	}
	uname, _ := store.Get(sessionUsername)
	username, _ := uname.(string)
	return Identity{UserID: userID, Username: username, Via: "session"}, true
}

// endSession destroys the request's session, if any.
func endSession(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return session.Destroy(ctx, w, r)
}
