package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pacslink/pacslink/internal/audit"
	"github.com/pacslink/pacslink/internal/auth"
	"github.com/pacslink/pacslink/internal/guard"
	"github.com/pacslink/pacslink/internal/mail"
	"github.com/pacslink/pacslink/internal/shared"
	"github.com/pacslink/pacslink/internal/token"
	_ "github.com/pacslink/pacslink/testing"
)

type stubUserRepo struct {
	users      map[string]*auth.User
	failCounts map[string]int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*auth.User), failCounts: make(map[string]int)}
}

func (s *stubUserRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (s *stubUserRepo) GetProfile(ctx context.Context, id string) (*auth.Profile, error) {
	for _, user := range s.users {
		if user.ID == id {
			return &auth.Profile{ID: user.ID, Position: user.Position, Email: user.Email, Name: user.Name}, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubUserRepo) Create(ctx context.Context, u *auth.User) error {
	s.users[u.Email] = u
	return nil
}

func (s *stubUserRepo) IncrementFailCount(ctx context.Context, email string) error {
	s.failCounts[email]++
	return nil
}

func (s *stubUserRepo) RecordLogin(ctx context.Context, email, ip string) error {
	s.failCounts[email] = 0
	return nil
}

type stubTokenRepo struct {
	tokens map[string]token.Token
}

func newStubTokenRepo() *stubTokenRepo {
	return &stubTokenRepo{tokens: make(map[string]token.Token)}
}

func (s *stubTokenRepo) Find(ctx context.Context, id string) (*token.Token, error) {
	tok, ok := s.tokens[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &tok, nil
}

func (s *stubTokenRepo) Create(ctx context.Context, tok token.Token) error {
	s.tokens[tok.ID] = tok
	return nil
}

func (s *stubTokenRepo) Delete(ctx context.Context, id string) (bool, error) {
	_, ok := s.tokens[id]
	delete(s.tokens, id)
	return ok, nil
}

func (s *stubTokenRepo) DeleteByUser(ctx context.Context, userID string) error {
	for id, tok := range s.tokens {
		if tok.UserID == userID {
			delete(s.tokens, id)
		}
	}
	return nil
}

func (s *stubTokenRepo) Redeem(ctx context.Context, id, userID, passwordHash string) (bool, error) {
	if _, ok := s.tokens[id]; !ok {
		return false, nil
	}
	delete(s.tokens, id)
	return true, nil
}

func (s *stubTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	for id, tok := range s.tokens {
		if !now.Before(tok.DueDate) {
			delete(s.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

type stubAuditRepo struct {
	entries []string
}

func (s *stubAuditRepo) Insert(ctx context.Context, ip, entryType, action, data, userID string) error {
	s.entries = append(s.entries, entryType+": "+action)
	return nil
}

func (s *stubAuditRepo) List(ctx context.Context, limit, offset int) ([]audit.Row, error) {
	return nil, nil
}

type stubDispatcher struct {
	mails  []mail.Message
	purged []string
}

func (s *stubDispatcher) EnqueueMail(ctx context.Context, msg mail.Message, ip, userID string) error {
	s.mails = append(s.mails, msg)
	return nil
}

func (s *stubDispatcher) EnqueueStoragePurge(ctx context.Context, userID string) error {
	s.purged = append(s.purged, userID)
	return nil
}

type stubCaptcha struct{ success bool }

func (s *stubCaptcha) Verify(ctx context.Context, tok, ip string) (bool, error) {
	return s.success, nil
}

// commitWriter mirrors the production middleware: the session commits to Redis
// and writes its cookie before the first response byte.
type commitWriter struct {
	http.ResponseWriter
	commit        func(http.ResponseWriter)
	headerWritten bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		w.commit(w.ResponseWriter)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func sessionMiddleware(t *testing.T, manager *shared.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := manager.Load(r.Context(), r)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			ctx := shared.ContextWithSession(r.Context(), sess)
			req := r.WithContext(ctx)
			wrapped := &commitWriter{ResponseWriter: w, commit: func(underlying http.ResponseWriter) {
				if err := manager.Commit(ctx, underlying, req, sess); err != nil {
					t.Errorf("commit session: %v", err)
				}
			}}
			next.ServeHTTP(wrapped, req)
		})
	}
}

type handlerEnv struct {
	router     chi.Router
	sessions   *shared.SessionManager
	users      *stubUserRepo
	tokens     *stubTokenRepo
	auditRepo  *stubAuditRepo
	dispatcher *stubDispatcher
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)

	userRepo := newStubUserRepo()
	tokenRepo := newStubTokenRepo()
	auditRepo := &stubAuditRepo{}
	dispatcher := &stubDispatcher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := auth.NewHandler(auth.HandlerConfig{
		Logger:         logger,
		Service:        auth.NewService(userRepo, &stubCaptcha{success: true}),
		Tokens:         token.NewService(tokenRepo),
		Audit:          audit.NewService(auditRepo),
		SessionManager: sessionManager,
		Mailer:         dispatcher,
		Purger:         dispatcher,
		Guard:          guard.Middleware{Logger: logger},
		PublicHost:     "https://pacslink.test",
	})

	router := chi.NewRouter()
	router.Use(sessionMiddleware(t, sessionManager))
	router.Route("/api/auth", handler.MountRoutes)

	return &handlerEnv{
		router:     router,
		sessions:   sessionManager,
		users:      userRepo,
		tokens:     tokenRepo,
		auditRepo:  auditRepo,
		dispatcher: dispatcher,
	}
}

func (e *handlerEnv) addVerifiedUser(t *testing.T, id, email, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	e.users.users[email] = &auth.User{
		ID: id, Email: email, Name: "Doc", Hospital: "St. Mary",
		PasswordHash: hash, Position: "user", Verified: true,
	}
}

func (e *handlerEnv) login(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	e.router.ServeHTTP(res, req)
	return res
}

func TestLoginSuccess(t *testing.T) {
	env := newHandlerEnv(t)
	env.addVerifiedUser(t, "u-1", "doc@clinic.test", "correcthorse")

	res := env.login(t, `{"email":"doc@clinic.test","password":"correcthorse","failCount":0}`)
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		OK   bool `json:"ok"`
		Data struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.True(t, payload.OK)
	assert.Equal(t, "u-1", payload.Data.ID)
	assert.Equal(t, "doc@clinic.test", payload.Data.Email)

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "test_session", cookies[0].Name)

	live, err := env.sessions.LiveSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "u-1", live[0].User.ID)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newHandlerEnv(t)
	env.addVerifiedUser(t, "u-1", "doc@clinic.test", "correcthorse")

	res := env.login(t, `{"email":"doc@clinic.test","password":"wrong","failCount":0}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"ok":false}`, res.Body.String())
	assert.Equal(t, 1, env.users.failCounts["doc@clinic.test"])
}

func TestLoginUnknownAndUnverifiedLookAlike(t *testing.T) {
	env := newHandlerEnv(t)
	env.addVerifiedUser(t, "u-1", "pending@clinic.test", "correcthorse")
	env.users.users["pending@clinic.test"].Verified = false

	unknown := env.login(t, `{"email":"nobody@clinic.test","password":"x","failCount":0}`)
	unverified := env.login(t, `{"email":"pending@clinic.test","password":"correcthorse","failCount":0}`)

	assert.Equal(t, unknown.Code, unverified.Code)
	assert.JSONEq(t, unknown.Body.String(), unverified.Body.String())
}

func TestLoginMissingFailCount(t *testing.T) {
	env := newHandlerEnv(t)
	env.addVerifiedUser(t, "u-1", "doc@clinic.test", "correcthorse")

	res := env.login(t, `{"email":"doc@clinic.test","password":"correcthorse"}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginCaptchaRequiredAtThreshold(t *testing.T) {
	env := newHandlerEnv(t)
	env.addVerifiedUser(t, "u-1", "doc@clinic.test", "correcthorse")

	res := env.login(t, `{"email":"doc@clinic.test","password":"correcthorse","failCount":5}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "captcha")
}

func TestLoginCaptchaTokenAccepted(t *testing.T) {
	env := newHandlerEnv(t)
	env.addVerifiedUser(t, "u-1", "doc@clinic.test", "correcthorse")

	res := env.login(t, `{"email":"doc@clinic.test","password":"correcthorse","failCount":5,"captchaToken":"tok"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"ok":true`)
}

func TestSecondLoginEvictsFirstSession(t *testing.T) {
	env := newHandlerEnv(t)
	env.addVerifiedUser(t, "u-1", "doc@clinic.test", "correcthorse")

	first := env.login(t, `{"email":"doc@clinic.test","password":"correcthorse","failCount":0}`)
	require.Equal(t, http.StatusOK, first.Code)
	second := env.login(t, `{"email":"doc@clinic.test","password":"correcthorse","failCount":0}`)
	require.Equal(t, http.StatusOK, second.Code)

	live, err := env.sessions.LiveSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, live, 1, "only the newest session survives")

	secondCookie := second.Result().Cookies()[0]
	assert.Equal(t, secondCookie.Value, live[0].ID)
}

func TestLoginsForDifferentUsersCoexist(t *testing.T) {
	env := newHandlerEnv(t)
	env.addVerifiedUser(t, "u-1", "doc@clinic.test", "correcthorse")
	env.addVerifiedUser(t, "u-2", "other@clinic.test", "correcthorse")

	require.Equal(t, http.StatusOK, env.login(t, `{"email":"doc@clinic.test","password":"correcthorse","failCount":0}`).Code)
	require.Equal(t, http.StatusOK, env.login(t, `{"email":"other@clinic.test","password":"correcthorse","failCount":0}`).Code)

	live, err := env.sessions.LiveSessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, live, 2)
}

func TestSignupIssuesTokenAndMail(t *testing.T) {
	env := newHandlerEnv(t)

	body := `{"hospital":"St. Mary","email":"new@clinic.test","name":"New Doc","contact":"555-0100","CountryId":1,"LangId":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, env.tokens.tokens, 1)
	require.Len(t, env.dispatcher.mails, 1)
	assert.Equal(t, "new@clinic.test", env.dispatcher.mails[0].To)

	user := env.users.users["new@clinic.test"]
	require.NotNil(t, user)
	assert.False(t, user.Verified)
}

func TestCheckTokenRoundTrip(t *testing.T) {
	env := newHandlerEnv(t)
	env.tokens.tokens["tok-1"] = token.Token{ID: "tok-1", UserID: "u-1", DueDate: time.Now().Add(time.Hour)}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/check/token/tok-1", nil)
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/check/token/missing", nil)
	res = httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusGone, res.Code)
}

func TestChangePasswordRedeemsToken(t *testing.T) {
	env := newHandlerEnv(t)
	env.tokens.tokens["tok-1"] = token.Token{ID: "tok-1", UserID: "u-1", DueDate: time.Now().Add(time.Hour)}

	body := `{"password":"newpw","password2":"newpw"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/auth/password/change/tok-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	// The token is consumed; a replay fails.
	req = httptest.NewRequest(http.MethodPatch, "/api/auth/password/change/tok-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res = httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusGone, res.Code)
}

func TestLogoutPurgesUploadsAndDestroysSession(t *testing.T) {
	env := newHandlerEnv(t)
	env.addVerifiedUser(t, "u-1", "doc@clinic.test", "correcthorse")

	loginRes := env.login(t, `{"email":"doc@clinic.test","password":"correcthorse","failCount":0}`)
	require.Equal(t, http.StatusOK, loginRes.Code)
	cookie := loginRes.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	req.AddCookie(cookie)
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	assert.Equal(t, []string{"u-1"}, env.dispatcher.purged)

	live, err := env.sessions.LiveSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestGuardRequiresSession(t *testing.T) {
	env := newHandlerEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/guard", nil)
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestGuardReturnsProfile(t *testing.T) {
	env := newHandlerEnv(t)
	env.addVerifiedUser(t, "u-1", "doc@clinic.test", "correcthorse")

	loginRes := env.login(t, `{"email":"doc@clinic.test","password":"correcthorse","failCount":0}`)
	cookie := loginRes.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/api/auth/guard", nil)
	req.AddCookie(cookie)
	res := httptest.NewRecorder()
	env.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"email":"doc@clinic.test"`)
}
