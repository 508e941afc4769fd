// Package auth drives the one-time-password login flow and owns the
// lifecycle of the stored token pair.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-moment-client/httpclient"
	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service provides login, refresh and logout on top of the authenticated client.
type Service struct {
	api       *httpclient.Client
	store     token.Store
	refresher httpclient.Refresher
	validator *Validator
	nowTime   func() time.Time // injectable for testing
	logger    zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService initializes a Service with its required dependencies.
func NewService(api *httpclient.Client, store token.Store, refresher httpclient.Refresher, opts ...ServiceOption) (*Service, error) {
	if api == nil {
		return nil, errors.New("[NewService] API client is required")
	}
	if store == nil {
		return nil, errors.New("[NewService] Token store is required")
	}
	if refresher == nil {
		return nil, errors.New("[NewService] Refresher is required")
	}

	s := &Service{
		api:       api,
		store:     store,
		refresher: refresher,
		validator: NewValidator(),
		nowTime:   time.Now,
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "auth").Logger()
	return s, nil
}

// SendOTP asks the server to deliver a one-time code to email or phone.
func (s *Service) SendOTP(ctx context.Context, email, phone string) (*SendOTPResponse, error) {
	if err := s.validator.ValidateContact(email, phone); err != nil {
		return nil, err
	}

	var resp SendOTPResponse
	req := SendOTPRequest{Email: strings.TrimSpace(email), Phone: strings.TrimSpace(phone)}
	if err := s.api.DoJSON(ctx, http.MethodPost, sendOTPPath, req, &resp); err != nil {
		return nil, errors.Wrap(err, "[SendOTP] request failed")
	}
	return &resp, nil
}

// VerifyOTP exchanges the code for a token pair and stores it.
func (s *Service) VerifyOTP(ctx context.Context, email, phone, otp string) (*token.TokenResponse, error) {
	if err := s.validator.ValidateContact(email, phone); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateOTP(otp); err != nil {
		return nil, err
	}

	var resp token.TokenResponse
	req := VerifyOTPRequest{Email: strings.TrimSpace(email), Phone: strings.TrimSpace(phone), OTP: strings.TrimSpace(otp)}
	if err := s.api.DoJSON(ctx, http.MethodPost, verifyOTPPath, req, &resp); err != nil {
		return nil, errors.Wrap(err, "[VerifyOTP] request failed")
	}
	if err := resp.Validate(); err != nil {
		return nil, &moerrors.DecodeError{Err: err}
	}
	if err := s.store.Save(ctx, resp.Pair()); err != nil {
		return nil, errors.Wrap(err, "[VerifyOTP] saving tokens")
	}

	s.logger.Info().Time("refresh_expires_at", resp.Pair().RefreshExpiry()).Msg("logged in")
	return &resp, nil
}

// Refresh forces a refresh-token exchange outside of 401 handling.
func (s *Service) Refresh(ctx context.Context) (token.TokenPair, error) {
	pair, err := s.refresher.Refresh(ctx)
	if err != nil {
		return token.TokenPair{}, errors.Wrap(err, "[Refresh] refresh failed")
	}
	return pair, nil
}

// Logout revokes the refresh token server side when one is stored, then
// clears local credentials. Local credentials are cleared even when the
// revoke fails; a server rejection is logged and otherwise ignored.
func (s *Service) Logout(ctx context.Context) error {
	pair, err := s.store.Load(ctx)
	if err != nil && !moerrors.Is(err, moerrors.ErrNoCredentials) {
		return errors.Wrap(err, "[Logout] loading tokens")
	}

	var revokeErr error
	if pair.RefreshToken != "" {
		err := s.api.DoJSON(ctx, http.MethodPost, logoutPath, LogoutRequest{RefreshToken: pair.RefreshToken}, nil)
		switch {
		case err == nil:
		case moerrors.StatusCode(err) != 0:
			s.logger.Warn().Err(err).Msg("server rejected logout")
		default:
			revokeErr = errors.Wrap(err, "[Logout] request failed")
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "[Logout] clearing tokens")
	}
	s.logger.Info().Msg("logged out")
	return revokeErr
}

// IsAuthenticated reports whether a stored pair can still authenticate a session.
func (s *Service) IsAuthenticated(ctx context.Context) bool {
	pair, err := s.store.Load(ctx)
	if err != nil {
		return false
	}
	return pair.Valid(s.nowTime())
}

// AccessToken returns the stored access token, if any.
func (s *Service) AccessToken(ctx context.Context) (string, bool) {
	pair, err := s.store.Load(ctx)
	if err != nil || pair.AccessToken == "" {
		return "", false
	}
	return pair.AccessToken, true
}
