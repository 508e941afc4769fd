// Package location checks whether the account may start a matching session.
package location

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-moment-client/httpclient"
	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/pkg/errors"
)

const eligibilityPath = "api/v1/location/eligibility/"

// Eligibility lists what the account still lacks, e.g. "profile_picture".
type Eligibility struct {
	Missing []string `json:"missing"`
}

func (e Eligibility) Eligible() bool {
	return len(e.Missing) == 0
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

// CheckEligibility returns an empty Eligibility when the server answers 2xx
// with no body.
func (s *Service) CheckEligibility(ctx context.Context) (*Eligibility, error) {
	var e Eligibility
	err := s.api.DoJSON(ctx, http.MethodGet, eligibilityPath, nil, &e)
	switch {
	case err == nil:
		return &e, nil
	case moerrors.Is(err, moerrors.ErrEmptyBody):
		return &Eligibility{}, nil
	default:
		return nil, errors.Wrap(err, "[CheckEligibility] request failed")
	}
}
