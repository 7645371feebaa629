// Package middleware holds the storefront's request middleware: session
// resolution, access control, the per-request cart and response hardening.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/tienda-labs/tienda/internal/store"
)

// SessionName is the cookie holding the signed session.
const SessionName = "tienda_session"

const (
	keyUserID = "user_id"
	keySID    = "sid"
)

type ctxKey int

const (
	userCtxKey ctxKey = iota
	sidCtxKey
	cartCtxKey
)

// SessionOptions configures the session cookie.
type SessionOptions struct {
	Secret string
	Secure bool
	MaxAge int // seconds
}

// NewCookieStore returns the signed cookie store sessions live in.
func NewCookieStore(opts SessionOptions) *sessions.CookieStore {
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = 86400
	}
	cs := sessions.NewCookieStore([]byte(opts.Secret))
	cs.MaxAge(maxAge)
	cs.Options.Path = "/"
	cs.Options.HttpOnly = true
	cs.Options.Secure = opts.Secure
	cs.Options.SameSite = http.SameSiteLaxMode
	return cs
}

// Sessions resolves the visitor on every request.
type Sessions struct {
	store  sessions.Store
	users  *store.UserStore
	logger *slog.Logger
}

// NewSessions creates the session middleware.
func NewSessions(st sessions.Store, users *store.UserStore, logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sessions{store: st, users: users, logger: logger}
}

func (s *Sessions) get(r *http.Request) *sessions.Session {
	sess, err := s.store.Get(r, SessionName)
	if err != nil {
		// Tampered or expired under an old key; start over.
		s.logger.Debug("discarding unreadable session", "error", err)
	}
	return sess
}

// Middleware makes sure every visitor has an anonymous session id and loads
// the logged-in user from the database. Users that no longer exist or were
// deactivated are dropped from the session.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := s.get(r)
		dirty := false

		sid, _ := sess.Values[keySID].(string)
		if sid == "" {
			sid = uuid.NewString()
			sess.Values[keySID] = sid
			dirty = true
		}

		var user *store.User
		if id, ok := sess.Values[keyUserID].(int64); ok && id > 0 {
			u, err := s.users.GetByID(ctx, id)
			switch {
			case err != nil:
				s.logger.Error("failed to load session user", "user_id", id, "error", err)
			case u == nil || !u.Active:
				s.logger.Info("dropping session for missing or inactive user", "user_id", id)
				delete(sess.Values, keyUserID)
				dirty = true
			default:
				user = u
			}
		}

		if dirty {
			if err := sess.Save(r, w); err != nil {
				s.logger.Error("failed to save session", "error", err)
			}
		}

		ctx = WithSessionID(ctx, sid)
		ctx = WithUser(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Login binds the session to user and issues a fresh anonymous id, so an id
// seen before authentication never outlives it. It returns the new id.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, user *store.User) (string, error) {
	sess := s.get(r)
	sid := uuid.NewString()
	sess.Values[keyUserID] = user.ID
	sess.Values[keySID] = sid
	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return sid, nil
}

// Logout forgets the user and the anonymous id by expiring the cookie.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	sess := s.get(r)
	delete(sess.Values, keyUserID)
	delete(sess.Values, keySID)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// WithUser stores the current user on ctx. A nil user means anonymous.
func WithUser(ctx context.Context, u *store.User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

// UserFrom returns the logged-in user, or nil.
func UserFrom(ctx context.Context) *store.User {
	u, _ := ctx.Value(userCtxKey).(*store.User)
	return u
}

// UserID returns the logged-in user's id, or 0.
func UserID(ctx context.Context) int64 {
	if u := UserFrom(ctx); u != nil {
		return u.ID
	}
	return 0
}

// WithSessionID stores the anonymous session id on ctx.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sidCtxKey, sid)
}

// SessionIDFrom returns the anonymous session id, or "".
func SessionIDFrom(ctx context.Context) string {
	sid, _ := ctx.Value(sidCtxKey).(string)
	return sid
}

// CartTopic names the notifier topic for the visitor's cart: the user when
// logged in, otherwise the anonymous session.
func CartTopic(ctx context.Context) string {
	if id := UserID(ctx); id > 0 {
		return "cart:u:" + strconv.FormatInt(id, 10)
	}
	if sid := SessionIDFrom(ctx); sid != "" {
		return "cart:s:" + sid
	}
	return ""
}
