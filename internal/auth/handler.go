package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/pacslink/pacslink/internal/audit"
	"github.com/pacslink/pacslink/internal/guard"
	"github.com/pacslink/pacslink/internal/mail"
	"github.com/pacslink/pacslink/internal/observability"
	"github.com/pacslink/pacslink/internal/platform/httpx"
	"github.com/pacslink/pacslink/internal/shared"
	"github.com/pacslink/pacslink/internal/token"
)

// MailDispatcher queues transactional mail for background delivery.
type MailDispatcher interface {
	EnqueueMail(ctx context.Context, msg mail.Message, ip, userID string) error
}

// PurgeDispatcher queues a wipe of a user's uploads.
type PurgeDispatcher interface {
	EnqueueStoragePurge(ctx context.Context, userID string) error
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	tokens         *token.Service
	audit          *audit.Service
	sessionManager *shared.SessionManager
	mailer         MailDispatcher
	purger         PurgeDispatcher
	guard          guard.Middleware
	validator      *validator.Validate
	publicHost     string
	metrics        *observability.Metrics
}

// HandlerConfig groups Handler dependencies.
type HandlerConfig struct {
	Logger         *slog.Logger
	Service        *Service
	Tokens         *token.Service
	Audit          *audit.Service
	SessionManager *shared.SessionManager
	Mailer         MailDispatcher
	Purger         PurgeDispatcher
	Guard          guard.Middleware
	// PublicHost is the externally visible origin embedded in mailed links.
	PublicHost string
	Metrics    *observability.Metrics
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		logger:         cfg.Logger,
		service:        cfg.Service,
		tokens:         cfg.Tokens,
		audit:          cfg.Audit,
		sessionManager: cfg.SessionManager,
		mailer:         cfg.Mailer,
		purger:         cfg.Purger,
		guard:          cfg.Guard,
		validator:      validator.New(),
		publicHost:     cfg.PublicHost,
		metrics:        cfg.Metrics,
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Options("/login", func(w http.ResponseWriter, _ *http.Request) {
		httpx.OK(w)
	})
	r.Post("/signup", h.signup)
	r.With(h.guard.RequireUser, h.guard.RequireAdmin).Post("/forceSignup", h.forceSignup)
	r.Get("/check/token/{id}", h.checkToken)
	r.With(h.guard.RequireUser).Post("/resetPassword", h.resetPassword)
	r.Post("/password/forgot", h.forgotPassword)
	r.Patch("/password/change/{token}", h.changePassword)
	r.With(h.guard.RequireUser).Get("/guard", h.guardProfile)
	r.With(h.guard.RequireUser).Get("/logout", h.logout)
}

type loginRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	FailCount    *int   `json:"failCount" validate:"required,gte=0"`
	CaptchaToken string `json:"captchaToken"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, firstValidationError(err)))
		return
	}
	ip := shared.ClientIP(r)

	if err := h.service.CheckCaptcha(r.Context(), *req.FailCount, req.CaptchaToken, ip); err != nil {
		httpx.RespondError(w, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if user == nil {
		h.metrics.CountLoginFailure()
		// Counter bump and audit entry have no ordering dependency.
		g := new(errgroup.Group)
		g.Go(func() error { return h.service.RegisterFailure(r.Context(), req.Email) })
		g.Go(func() error {
			return h.audit.Record(r.Context(), audit.Entry{
				IP: ip, Type: "LOGIN", Action: fmt.Sprintf("%q login failed", req.Email),
			})
		})
		if err := g.Wait(); err != nil {
			h.logger.Warn("record login failure", slog.Any("error", err))
		}
		// The response never distinguishes unknown account, unverified
		// account and wrong password.
		httpx.JSON(w, http.StatusOK, map[string]any{"ok": false})
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.RespondError(w, shared.ErrSessionMissing)
		return
	}
	snapshot := user.Snapshot()
	sess.SetUser(snapshot)

	// Persist before the eviction scan so the scan sees the session it must
	// keep. Last login wins: every other session for this user is destroyed.
	if err := h.sessionManager.Save(r.Context(), sess); err != nil {
		h.logger.Error("persist session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if evicted, err := h.sessionManager.EvictUserSessions(r.Context(), user.ID, sess.ID); err != nil {
		h.logger.Warn("evict sessions", slog.Any("error", err))
	} else if evicted > 0 {
		h.logger.Info("evicted sessions", slog.String("user_id", user.ID), slog.Int("count", evicted))
	}

	g := new(errgroup.Group)
	g.Go(func() error { return h.service.RegisterSuccess(r.Context(), req.Email, ip) })
	g.Go(func() error {
		return h.audit.Record(r.Context(), audit.Entry{
			IP: ip, Type: "LOGIN", Action: fmt.Sprintf("%q login succeeded", req.Email), UserID: user.ID,
		})
	})
	if err := g.Wait(); err != nil {
		h.logger.Warn("record login success", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "data": snapshot})
}

type signupRequest struct {
	Hospital  string `json:"hospital" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"required"`
	Contact   string `json:"contact" validate:"required"`
	CountryID int    `json:"CountryId" validate:"required"`
	LangID    int    `json:"LangId" validate:"required"`
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, firstValidationError(err)))
		return
	}
	ip := shared.ClientIP(r)

	user, err := h.service.Signup(r.Context(), SignupInput{
		Hospital:  req.Hospital,
		Email:     req.Email,
		Name:      req.Name,
		Contact:   req.Contact,
		CountryID: req.CountryID,
		LangID:    req.LangID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if _, err := h.tokens.Issue(r.Context(), user.ID); err != nil {
		h.logger.Error("issue signup token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	h.dispatchMail(r.Context(), mail.Message{
		To:      user.Email,
		Subject: "Sign up",
		HTML:    mail.BuildSignupMail("Sign Up"),
	}, ip, user.ID)

	if err := h.audit.Record(r.Context(), audit.Entry{
		IP: ip, Type: "SIGN UP", Action: fmt.Sprintf("%q signed up", user.Email), UserID: user.ID,
	}); err != nil {
		h.logger.Warn("audit signup", slog.Any("error", err))
	}

	httpx.OK(w)
}

type forceSignupRequest struct {
	signupRequest
	Password string `json:"password" validate:"required"`
	Position string `json:"position" validate:"required"`
	Verified *bool  `json:"verified" validate:"required"`
}

func (h *Handler) forceSignup(w http.ResponseWriter, r *http.Request) {
	var req forceSignupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, firstValidationError(err)))
		return
	}
	ip := shared.ClientIP(r)

	user, err := h.service.ForceSignup(r.Context(), ForceSignupInput{
		SignupInput: SignupInput{
			Hospital:  req.Hospital,
			Email:     req.Email,
			Name:      req.Name,
			Contact:   req.Contact,
			CountryID: req.CountryID,
			LangID:    req.LangID,
		},
		Password: req.Password,
		Position: req.Position,
		Verified: *req.Verified,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if err := h.audit.Record(r.Context(), audit.Entry{
		IP: ip, Type: "SIGN UP", Action: fmt.Sprintf("%q signed up (admin)", user.Email), UserID: user.ID,
	}); err != nil {
		h.logger.Warn("audit force signup", slog.Any("error", err))
	}

	httpx.OK(w)
}

func (h *Handler) checkToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if _, err := h.tokens.Validate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	ip := shared.ClientIP(r)

	tokenID, err := h.tokens.Issue(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("issue reset token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	changePasswordURL := fmt.Sprintf("%s/password/change/%s", h.publicHost, tokenID)
	h.dispatchMail(r.Context(), mail.Message{
		To:      user.Email,
		Subject: "Password Change",
		HTML: mail.BuildPasswordMail("Password Change",
			fmt.Sprintf("%s, Your password change request has been approved", user.Email),
			changePasswordURL),
	}, ip, user.ID)

	if err := h.audit.Record(r.Context(), audit.Entry{
		IP: ip, Type: "RESET PASSWORD", Action: fmt.Sprintf("%q requested password change", user.Email), UserID: user.ID,
	}); err != nil {
		h.logger.Warn("audit reset password", slog.Any("error", err))
	}

	httpx.OK(w)
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, firstValidationError(err)))
		return
	}
	ip := shared.ClientIP(r)

	user, err := h.service.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, fmt.Errorf("%w: invalid email", httpx.ErrValidation))
			return
		}
		h.logger.Error("find by email", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	tokenID, err := h.tokens.Issue(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("issue forgot token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	changePasswordURL := fmt.Sprintf("%s/password/change/%s", h.publicHost, tokenID)
	h.dispatchMail(r.Context(), mail.Message{
		To:      user.Email,
		Subject: "Update Password",
		HTML: mail.BuildPasswordMail("Password Change",
			fmt.Sprintf("%s password change request has been approved", user.Email),
			changePasswordURL),
	}, ip, user.ID)

	if err := h.audit.Record(r.Context(), audit.Entry{
		IP: ip, Type: "FORGOT PASSWORD", Action: fmt.Sprintf("%q requested password reset", user.Email), UserID: user.ID,
	}); err != nil {
		h.logger.Warn("audit forgot password", slog.Any("error", err))
	}

	httpx.OK(w)
}

type changePasswordRequest struct {
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.tokens.Redeem(r.Context(), chi.URLParam(r, "token"), req.Password, req.Password2); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w)
}

func (h *Handler) guardProfile(w http.ResponseWriter, r *http.Request) {
	user := shared.UserFromContext(r.Context())
	profile, err := h.service.Profile(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("load profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	user := sess.User()
	ip := shared.ClientIP(r)

	// Logout reclaims the user's upload space: records, local files and
	// bucket objects are wiped in the background. A failed enqueue is logged
	// and never blocks session destruction.
	if err := h.purger.EnqueueStoragePurge(r.Context(), user.ID); err != nil {
		h.logger.Warn("enqueue storage purge", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	h.sessionManager.Destroy(sess)

	if err := h.audit.Record(r.Context(), audit.Entry{
		IP: ip, Type: "LOGOUT", Action: fmt.Sprintf("%q logged out", user.Email), UserID: user.ID,
	}); err != nil {
		h.logger.Warn("audit logout", slog.Any("error", err))
	}

	httpx.OK(w)
}

// dispatchMail queues a mail, logging instead of failing the request: mail is
// fire-and-forget on every flow that sends one.
func (h *Handler) dispatchMail(ctx context.Context, msg mail.Message, ip, userID string) {
	if err := h.mailer.EnqueueMail(ctx, msg, ip, userID); err != nil {
		h.logger.Warn("enqueue mail", slog.String("to", msg.To), slog.Any("error", err))
	}
}

func firstValidationError(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		return errs[0].Error()
	}
	return err.Error()
}
