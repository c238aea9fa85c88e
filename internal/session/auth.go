package session

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/okr/internal/api"
	"github.com/felixgeelhaar/okr/internal/domain"
	"github.com/felixgeelhaar/okr/internal/storage"
	"github.com/felixgeelhaar/okr/internal/telemetry"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registration struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	Name             string `json:"name"`
	OrganizationName string `json:"organizationName"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type registerResponse struct {
	Message       string    `json:"message"`
	UserID        domain.ID `json:"userId"`
	EmailVerified bool      `json:"emailVerified"`
}

// begin marks an operation in flight and clears the last error.
func (s *Store) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.lastError = ""
}

func (s *Store) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
}

// fail records the payload message of err, or fallback, as the last error.
func (s *Store) fail(ctx context.Context, span trace.Span, err error, fallback string) Outcome {
	msg := api.ServerMessage(err, fallback)
	telemetry.RecordError(span, err)
	s.logger.WithError(err).DebugContext(ctx, "auth operation failed", "reason", msg)

	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
	return Outcome{Error: msg}
}

func onRoute(ctx context.Context, route string) context.Context {
	if api.CurrentRoute(ctx) != "" {
		return ctx
	}
	return api.WithCurrentRoute(ctx, route)
}

// Login signs in with email and password. A failure leaves any held session untouched.
func (s *Store) Login(ctx context.Context, email, password string) Outcome {
	ctx, span := telemetry.StartSessionSpan(ctx, "login")
	defer span.End()

	s.begin()
	defer s.end()

	var resp authResponse
	err := s.client.Post(onRoute(ctx, "/login"), "/auth/login", credentials{Email: email, Password: password}, &resp)
	if err != nil {
		s.restorePersisted()
		return s.fail(ctx, span, err, "Login failed")
	}
	return s.complete(ctx, span, resp, "Login failed")
}

// complete establishes the session returned by login or the OAuth exchange.
func (s *Store) complete(ctx context.Context, span trace.Span, resp authResponse, fallback string) Outcome {
	if resp.Token == "" || resp.User.ID.IsZero() {
		return s.fail(ctx, span, nil, fallback)
	}

	s.mu.Lock()
	err := s.establishLocked(resp.Token, resp.User)
	s.mu.Unlock()
	if err != nil {
		return s.fail(ctx, span, err, fallback)
	}

	telemetry.RecordSuccess(span)
	s.logger.InfoContext(ctx, "signed in", "user_id", resp.User.ID.String())
	return Outcome{Success: true}
}

// restorePersisted writes the held session back after a 401 on a guest route
// cleared storage underneath it.
func (s *Store) restorePersisted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restorePersistedLocked()
}

func (s *Store) restorePersistedLocked() {
	if !s.authenticatedLocked() {
		return
	}
	if _, ok, _ := s.persist.Get(storage.KeyAuthToken); ok {
		return
	}
	if err := s.persist.Set(storage.KeyAuthToken, s.token); err != nil {
		s.logger.WithError(err).Warn("failed to restore persisted token")
		return
	}
	s.setUserLocked(*s.user)
}

// Register creates an account. It never establishes a session.
func (s *Store) Register(ctx context.Context, email, password, name, orgName string) Outcome {
	ctx, span := telemetry.StartSessionSpan(ctx, "register")
	defer span.End()

	s.begin()
	defer s.end()

	var resp registerResponse
	body := registration{Email: email, Password: password, Name: name, OrganizationName: orgName}
	if err := s.client.Post(onRoute(ctx, "/register"), "/auth/register", body, &resp); err != nil {
		s.restorePersisted()
		return s.fail(ctx, span, err, "Registration failed")
	}

	telemetry.RecordSuccess(span)
	return Outcome{
		Success:       true,
		Message:       resp.Message,
		UserID:        resp.UserID,
		EmailVerified: resp.EmailVerified,
	}
}

// VerifyEmail redeems an email verification token.
func (s *Store) VerifyEmail(ctx context.Context, token string) Outcome {
	return s.simple(ctx, "verify_email", "/auth/verify-email", map[string]string{"token": token}, "Email verification failed")
}

// ResendVerification asks the server to send another verification email.
func (s *Store) ResendVerification(ctx context.Context, email string) Outcome {
	return s.simple(ctx, "resend_verification", "/auth/resend-verification", map[string]string{"email": email}, "Failed to resend verification email")
}

// ForgotPassword asks the server to send a password reset email.
func (s *Store) ForgotPassword(ctx context.Context, email string) Outcome {
	return s.simple(ctx, "forgot_password", "/auth/forgot-password", map[string]string{"email": email}, "Failed to send password reset email")
}

// ResetPassword sets a new password using a reset token.
func (s *Store) ResetPassword(ctx context.Context, token, password string) Outcome {
	return s.simple(ctx, "reset_password", "/auth/reset-password", map[string]string{"token": token, "password": password}, "Password reset failed")
}

// simple performs a single request that never touches the session.
func (s *Store) simple(ctx context.Context, op, path string, body any, fallback string) Outcome {
	ctx, span := telemetry.StartSessionSpan(ctx, op)
	defer span.End()

	s.begin()
	defer s.end()

	if err := s.client.Post(ctx, path, body, nil); err != nil {
		return s.fail(ctx, span, err, fallback)
	}
	telemetry.RecordSuccess(span)
	return Outcome{Success: true}
}

// FetchCurrentUser re-validates the held token and refreshes the cached user.
// A 401 tears the session down before the error is returned.
func (s *Store) FetchCurrentUser(ctx context.Context) (domain.User, error) {
	ctx, span := telemetry.StartSessionSpan(ctx, "fetch_current_user")
	defer span.End()

	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	user, err := s.fetchUser(withGeneration(ctx, gen))
	if err != nil {
		telemetry.RecordError(span, err)
		if api.IsUnauthorized(err) {
			s.logoutGeneration(ctx, gen, PhaseRejected)
		}
		return domain.User{}, err
	}

	s.mu.Lock()
	if s.generation == gen && s.token != "" {
		s.setUserLocked(user)
		s.setPhaseLocked(PhaseConfirmed)
	}
	s.mu.Unlock()

	telemetry.RecordSuccess(span)
	return user, nil
}

func (s *Store) fetchUser(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := s.client.Get(ctx, "/auth/me", nil, &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Logout notifies the server when a token is held, then clears the session.
// Server failures are logged; the session is cleared regardless.
func (s *Store) Logout(ctx context.Context) {
	ctx, span := telemetry.StartSessionSpan(ctx, "logout")
	defer span.End()

	s.mu.RLock()
	gen := s.generation
	s.mu.RUnlock()

	s.logout(ctx, gen, PhaseAnonymous, false)
}

// logoutGeneration tears down the session only if it is still the one started at gen.
func (s *Store) logoutGeneration(ctx context.Context, gen uint64, phase Phase) {
	s.logout(ctx, gen, phase, true)
}

func (s *Store) logout(ctx context.Context, gen uint64, phase Phase, onlyIfCurrent bool) {
	s.mu.RLock()
	token := s.token
	current := s.generation == gen
	s.mu.RUnlock()

	if onlyIfCurrent && !current {
		return
	}

	if token != "" {
		if err := s.client.Post(ctx, "/auth/logout", nil, nil); err != nil {
			s.logger.WithError(err).WarnContext(ctx, "logout request failed")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if onlyIfCurrent && s.generation != gen {
		return
	}
	s.clearLocked(phase)
}
