package session

import (
	"context"
	"net/url"

	"github.com/felixgeelhaar/okr/internal/storage"
	"github.com/felixgeelhaar/okr/internal/telemetry"
)

type googleAuthResponse struct {
	AuthURL     string `json:"authUrl"`
	RedirectURI string `json:"redirectUri"`
}

type googleExchange struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

// CallbackURL returns the OAuth callback URL this client registers with the server.
func (s *Store) CallbackURL() string {
	return s.callbackURL
}

// LoginWithGoogle starts a Google sign-in. The post-login destination is kept in
// scoped storage and the authorization URL is handed to the Navigator. The
// returned Outcome is Pending; ExchangeGoogleCode completes the flow.
func (s *Store) LoginWithGoogle(ctx context.Context, redirectPath string) Outcome {
	ctx, span := telemetry.StartSessionSpan(ctx, "login_google")
	defer span.End()

	if redirectPath == "" {
		redirectPath = "/"
	}

	s.begin()

	if err := s.scoped.Set(storage.KeyGoogleOAuthRedirect, redirectPath); err != nil {
		s.logger.WithError(err).Warn("failed to remember OAuth destination")
	}

	query := url.Values{}
	query.Set("redirect", redirectPath)
	query.Set("redirectUri", s.callbackURL)

	var resp googleAuthResponse
	if err := s.client.Get(onRoute(ctx, "/login"), "/auth/google", query, &resp); err != nil {
		s.restorePersisted()
		s.end()
		return s.fail(ctx, span, err, "Google sign-in failed")
	}
	if resp.AuthURL == "" {
		s.end()
		return s.fail(ctx, span, nil, "Google sign-in failed")
	}

	s.logger.DebugContext(ctx, "google sign-in", "redirect_uri", s.callbackURL, "backend_redirect_uri", resp.RedirectURI)
	if resp.RedirectURI != s.callbackURL {
		s.logger.WarnContext(ctx, "OAuth redirect URI mismatch; it must match the one registered with Google exactly",
			"client", s.callbackURL, "server", resp.RedirectURI)
	}

	if s.navigator != nil {
		if err := s.navigator.Navigate(ctx, resp.AuthURL); err != nil {
			s.end()
			return s.fail(ctx, span, err, "Google sign-in failed")
		}
	}

	telemetry.RecordSuccess(span)
	return Outcome{Success: true, Pending: true, AuthURL: resp.AuthURL}
}

// ExchangeGoogleCode redeems an authorization code with the same callback URL
// used to request it and establishes the session.
func (s *Store) ExchangeGoogleCode(ctx context.Context, code string) Outcome {
	ctx, span := telemetry.StartSessionSpan(ctx, "exchange_google_code")
	defer span.End()
	defer s.end()

	var resp authResponse
	body := googleExchange{Code: code, RedirectURI: s.callbackURL}
	if err := s.client.Post(onRoute(ctx, "/auth/google/callback"), "/auth/google/callback", body, &resp); err != nil {
		return s.fail(ctx, span, err, "Failed to complete Google sign-in")
	}
	return s.complete(ctx, span, resp, "Failed to complete Google sign-in")
}

// OAuthRedirect consumes the destination stored by LoginWithGoogle. It returns
// "/" when none is stored or it has expired.
func (s *Store) OAuthRedirect() string {
	dest, ok, err := s.scoped.Get(storage.KeyGoogleOAuthRedirect)
	if err != nil {
		s.logger.WithError(err).Warn("failed to read OAuth destination")
	}
	if rmErr := s.scoped.Remove(storage.KeyGoogleOAuthRedirect); rmErr != nil {
		s.logger.WithError(rmErr).Warn("failed to clear OAuth destination")
	}
	if err != nil || !ok || dest == "" {
		return "/"
	}
	return dest
}
