// Package notifications lists account notifications and post-match review prompts.
package notifications

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-moment-client/httpclient"
	"github.com/jrsteele09/go-moment-client/realtime"
	"github.com/pkg/errors"
)

const (
	notificationsPath = "api/v1/notifications/"
	reviewsPath       = "api/v1/user-reviews/"
)

type Notification struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

type NotificationsRead struct {
	Notifications []Notification `json:"notifications"`
}

// UserReviewPrompt asks whether a past match may be matched again.
type UserReviewPrompt struct {
	MatchIDToken string               `json:"match_id_token"`
	User         realtime.MatchedUser `json:"user"`
	MatchedAt    string               `json:"matched_at"`
}

type UserReviewPromptsRead struct {
	Prompts []UserReviewPrompt `json:"prompts"`
}

type UserReviewDecisionRequest struct {
	AllowRematch bool `json:"allow_rematch"`
}

type UserReviewDecisionResponse struct {
	Message string `json:"message"`
}

type Service struct {
	api *httpclient.Client
}

func NewService(api *httpclient.Client) (*Service, error) {
	if api == nil {
		return nil, errors.New("[NewService] API client is required")
	}
	return &Service{api: api}, nil
}

func (s *Service) List(ctx context.Context) ([]Notification, error) {
	var resp NotificationsRead
	if err := s.api.DoJSON(ctx, http.MethodGet, notificationsPath, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "[List] request failed")
	}
	return resp.Notifications, nil
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.api.DoJSON(ctx, http.MethodDelete, fmt.Sprintf("%s%d/", notificationsPath, id), nil, nil); err != nil {
		return errors.Wrapf(err, "[Delete] notification %d", id)
	}
	return nil
}

func (s *Service) MarkRead(ctx context.Context, id int) error {
	if err := s.api.DoJSON(ctx, http.MethodPatch, fmt.Sprintf("%s%d/read/", notificationsPath, id), nil, nil); err != nil {
		return errors.Wrapf(err, "[MarkRead] notification %d", id)
	}
	return nil
}

// Reviews returns the matches still awaiting a rematch decision.
func (s *Service) Reviews(ctx context.Context) ([]UserReviewPrompt, error) {
	var resp UserReviewPromptsRead
	if err := s.api.DoJSON(ctx, http.MethodGet, reviewsPath, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "[Reviews] request failed")
	}
	return resp.Prompts, nil
}

func (s *Service) SubmitReview(ctx context.Context, matchIDToken string, allowRematch bool) (*UserReviewDecisionResponse, error) {
	if matchIDToken == "" {
		return nil, errors.New("[SubmitReview] match id token is required")
	}
	var resp UserReviewDecisionResponse
	path := reviewsPath + url.PathEscape(matchIDToken) + "/"
	if err := s.api.DoJSON(ctx, http.MethodPost, path, UserReviewDecisionRequest{AllowRematch: allowRematch}, &resp); err != nil {
		return nil, errors.Wrap(err, "[SubmitReview] request failed")
	}
	return &resp, nil
}
