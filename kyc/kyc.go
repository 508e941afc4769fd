// Package kyc submits driving licence verification and reads its status.
package kyc

import (
	"context"
	"io"
	"net/http"

	"github.com/jrsteele09/go-moment-client/httpclient"
	"github.com/pkg/errors"
)

const (
	verifyPath = "api/v1/kyc/verify-license/"
	statusPath = verifyPath + "status/"
)

// Verification statuses reported by the server.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// File is one uploaded image.
type File struct {
	Name        string
	ContentType string // defaults to image/jpeg
	Content     io.Reader
}

type KYCVerificationRead struct {
	ID            int     `json:"id"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
	FailureReason *string `json:"failure_reason"`
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

// VerifyLicense uploads both sides of the licence and a selfie. The server
// answers 202 with no body; the outcome is read later through Status.
func (s *Service) VerifyLicense(ctx context.Context, front, back, selfie File) error {
	parts := []httpclient.Part{
		part("licenseFront", front),
		part("licenseBack", back),
		part("selfie", selfie),
	}
	for _, p := range parts {
		if p.Content == nil {
			return errors.Errorf("[VerifyLicense] %s is required", p.Field)
		}
	}
	if err := s.api.DoMultipart(ctx, http.MethodPost, verifyPath, parts, nil); err != nil {
		return errors.Wrap(err, "[VerifyLicense] request failed")
	}
	return nil
}

// Status returns the latest verification. A 404 means nothing was submitted.
func (s *Service) Status(ctx context.Context) (*KYCVerificationRead, error) {
	var v KYCVerificationRead
	if err := s.api.DoJSON(ctx, http.MethodGet, statusPath, nil, &v); err != nil {
		return nil, errors.Wrap(err, "[Status] request failed")
	}
	return &v, nil
}

func part(field string, f File) httpclient.Part {
	name := f.Name
	if name == "" {
		name = field + ".jpg"
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return httpclient.Part{Field: field, FileName: name, ContentType: contentType, Content: f.Content}
}
