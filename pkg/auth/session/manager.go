package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/troopfundraiser/frclient/pkg/auth"
	"github.com/troopfundraiser/frclient/pkg/config"
	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
	"github.com/troopfundraiser/frclient/pkg/logger"
	redisclient "github.com/troopfundraiser/frclient/pkg/redis"
)

// Tokens is the set issued by the hosted identity provider.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	IDToken      string `json:"idToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Session is what the manager keeps in Redis for one signed-in user.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	IsAdmin   bool      `json:"isAdmin"`
	Tokens    Tokens    `json:"tokens"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// BearerToken is the token sent to the order API. The API authorizer expects the id token.
func (s Session) BearerToken() string {
	if strings.TrimSpace(s.Tokens.IDToken) != "" {
		return s.Tokens.IDToken
	}
	return s.Tokens.AccessToken
}

// Refresher exchanges a refresh token for a new token set.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

// LogoutHook drops other session-scoped state, such as the cached configuration.
type LogoutHook func(ctx context.Context, sessionID string) error

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	TrackSession(ctx context.Context, sessionID string) error
	UntrackSession(ctx context.Context, sessionID string) error
	TrackedSessions(ctx context.Context) ([]string, error)
}

type sessionKeyer interface {
	SessionKey(sessionID string) string
}

// Manager stores sessions, hands out bearer tokens and refreshes them before they expire.
type Manager struct {
	store     sessionStore
	keyer     sessionKeyer
	authCfg   config.AuthConfig
	ttl       time.Duration
	refresher Refresher
	logg      *logger.Logger
	hooks     []LogoutHook
	now       func() time.Time
}

// ManagerParams configure a Manager.
type ManagerParams struct {
	Redis     *redisclient.Client
	Auth      config.AuthConfig
	TTL       time.Duration
	Refresher Refresher
	Logger    *logger.Logger
}

// NewManager constructs a session manager backed by Redis.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newManager(params.Redis, params.Redis, params)
}

func newManager(store sessionStore, keyer sessionKeyer, params ManagerParams) (*Manager, error) {
	if params.TTL <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	if params.Refresher == nil {
		return nil, fmt.Errorf("refresher is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Manager{
		store:     store,
		keyer:     keyer,
		authCfg:   params.Auth,
		ttl:       params.TTL,
		refresher: params.Refresher,
		logg:      logg,
		now:       time.Now,
	}, nil
}

// OnLogout registers a hook run whenever a session ends.
func (m *Manager) OnLogout(hook LogoutHook) {
	if hook != nil {
		m.hooks = append(m.hooks, hook)
	}
}

// Create registers the tokens obtained from the identity provider and returns the new session.
func (m *Manager) Create(ctx context.Context, tokens Tokens) (*Session, error) {
	if strings.TrimSpace(tokens.AccessToken) == "" && strings.TrimSpace(tokens.IDToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "access or id token is required")
	}
	sess := &Session{ID: uuid.NewString(), Tokens: tokens, CreatedAt: m.now().UTC()}
	if err := m.applyIdentity(sess); err != nil {
		return nil, err
	}
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}
	if err := m.store.TrackSession(ctx, sess.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "track session")
	}
	m.logg.Info(m.logg.WithUserID(m.logg.WithSessionID(ctx, sess.ID), sess.UserID), "session created")
	return sess, nil
}

// Get loads a session. Unknown ids are invalid sessions.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.ErrInvalidSession
	}
	raw, err := m.store.Get(ctx, m.keyer.SessionKey(sessionID))
	if err != nil {
		if errors.Is(err, redisclient.Nil) {
			return nil, pkgerrors.ErrInvalidSession
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidSession, err, "invalid session")
	}
	return &sess, nil
}

// Token returns the bearer token of the session attached to ctx.
func (m *Manager) Token(ctx context.Context) (string, error) {
	sessionID, ok := IDFromContext(ctx)
	if !ok {
		return "", pkgerrors.ErrInvalidSession
	}
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !sess.ExpiresAt.IsZero() && !m.now().Before(sess.ExpiresAt) {
		return "", pkgerrors.ErrInvalidSession
	}
	return sess.BearerToken(), nil
}

// Identity returns the caller behind the session attached to ctx.
func (m *Manager) Identity(ctx context.Context) (*auth.Identity, error) {
	token, err := m.Token(ctx)
	if err != nil {
		return nil, err
	}
	return auth.ParseIdentity(m.authCfg, token)
}

// Refresh exchanges the session's refresh token for new tokens. Any failure logs the session out.
func (m *Manager) Refresh(ctx context.Context, sessionID string) error {
	sess, err := m.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	ctx = m.logg.WithSessionID(ctx, sessionID)
	if strings.TrimSpace(sess.Tokens.RefreshToken) == "" {
		return m.failRefresh(ctx, sessionID, fmt.Errorf("session has no refresh token"))
	}

	tokens, err := m.refresher.Refresh(ctx, sess.Tokens.RefreshToken)
	if err != nil {
		return m.failRefresh(ctx, sessionID, err)
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = sess.Tokens.RefreshToken
	}
	sess.Tokens = tokens
	if err := m.applyIdentity(sess); err != nil {
		return m.failRefresh(ctx, sessionID, err)
	}
	if err := m.save(ctx, sess); err != nil {
		return err
	}
	m.logg.Info(ctx, "session refreshed")
	return nil
}

func (m *Manager) failRefresh(ctx context.Context, sessionID string, cause error) error {
	m.logg.Warn(m.logg.WithField(ctx, "reason", cause.Error()), "session refresh failed; logging out")
	if err := m.Logout(ctx, sessionID); err != nil {
		cause = multierr.Append(cause, err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInvalidSession, cause, "invalid session")
}

// RefreshDue refreshes every tracked session whose token expires within the configured skew.
func (m *Manager) RefreshDue(ctx context.Context) error {
	ids, err := m.store.TrackedSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	var errs error
	refreshed := 0
	for _, id := range ids {
		sess, err := m.Get(ctx, id)
		if err != nil {
			if pkgerrors.IsInvalidSession(err) {
				errs = multierr.Append(errs, m.store.UntrackSession(ctx, id))
				continue
			}
			errs = multierr.Append(errs, err)
			continue
		}
		if sess.ExpiresAt.IsZero() || m.now().Add(m.authCfg.RefreshSkew).Before(sess.ExpiresAt) {
			continue
		}
		if err := m.Refresh(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("refresh session %s: %w", id, err))
			continue
		}
		refreshed++
	}
	m.logg.Info(m.logg.WithFields(ctx, map[string]any{"sessions": len(ids), "refreshed": refreshed}), "session refresh sweep complete")
	return errs
}

// Logout drops the session tokens and every piece of state registered through OnLogout.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.ErrInvalidSession
	}
	err := multierr.Combine(
		m.store.Del(ctx, m.keyer.SessionKey(sessionID)),
		m.store.UntrackSession(ctx, sessionID),
	)
	for _, hook := range m.hooks {
		err = multierr.Append(err, hook(ctx, sessionID))
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "logout")
	}
	m.logg.Info(m.logg.WithSessionID(ctx, sessionID), "session ended")
	return nil
}

func (m *Manager) applyIdentity(sess *Session) error {
	identity, err := auth.ParseIdentity(m.authCfg, sess.BearerToken())
	if err != nil {
		return err
	}
	if identity.Expired(m.now()) {
		return pkgerrors.ErrInvalidSession
	}
	sess.UserID = identity.UserID
	sess.IsAdmin = identity.IsAdmin
	sess.ExpiresAt = identity.ExpiresAt
	return nil
}

func (m *Manager) save(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session")
	}
	if err := m.store.Set(ctx, m.keyer.SessionKey(sess.ID), string(payload), m.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session")
	}
	return nil
}

type sessionIDKey struct{}

// WithID attaches the caller's session id to ctx.
func WithID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, strings.TrimSpace(sessionID))
}

// IDFromContext returns the session id attached by WithID.
func IDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok && id != ""
}
