package session

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const keyField = "key"

// Manager maps the session cookie of an HTTP request to a Context, issuing
// a new key to first-time visitors.
type Manager struct {
	cookies sessions.Store
	name    string
	store   *Store
	logger  *zap.Logger
}

// ManagerConfig configures the session cookie.
type ManagerConfig struct {
	CookieName string
	Secret     []byte
	MaxAge     int // seconds
	Secure     bool
}

// NewManager creates a Manager keeping histories in store.
func NewManager(cfg ManagerConfig, store *Store, logger *zap.Logger) *Manager {
	cookies := sessions.NewCookieStore(cfg.Secret)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{
		cookies: cookies,
		name:    cfg.CookieName,
		store:   store,
		logger:  logger.Named("session"),
	}
}

// Context returns the session of r, writing a cookie to w when a new
// session is started.
func (m *Manager) Context(w http.ResponseWriter, r *http.Request) *Context {
	sess, err := m.cookies.Get(r, m.name)
	if err != nil {
		// A cookie signed with another secret decodes with an error but
		// still yields a fresh session.
		m.logger.Debug("Discarding unreadable session cookie", zap.Error(err))
	}

	key, _ := sess.Values[keyField].(string)
	if key == "" {
		key = uuid.NewString()
		sess.Values[keyField] = key
		if err := sess.Save(r, w); err != nil {
			m.logger.Error("Failed to save session cookie", zap.Error(err))
		}
	}
	return m.store.Context(key)
}
