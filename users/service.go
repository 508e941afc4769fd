// Package users reads and updates the signed-in account.
package users

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/jrsteele09/go-moment-client/httpclient"
	"github.com/pkg/errors"
)

const (
	mePath             = "api/v1/user/me/"
	profilePath        = mePath + "profile/"
	preferencesPath    = mePath + "preferences/"
	changeEmailPath    = mePath + "change-email/"
	profilePicturePath = mePath + "profile-picture/"
	sessionPicturePath = mePath + "session-picture/"

	pictureField       = "file"
	defaultPictureType = "image/*"
)

type Service struct {
	api *httpclient.Client
}

func NewService(api *httpclient.Client) (*Service, error) {
	if api == nil {
		return nil, errors.New("[NewService] API client is required")
	}
	return &Service{api: api}, nil
}

func (s *Service) Me(ctx context.Context) (*UserRead, error) {
	var user UserRead
	if err := s.api.DoJSON(ctx, http.MethodGet, mePath, nil, &user); err != nil {
		return nil, errors.Wrap(err, "[Me] request failed")
	}
	return &user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, update UserProfileUpdate) (*UserRead, error) {
	var user UserRead
	if err := s.api.DoJSON(ctx, http.MethodPatch, profilePath, update, &user); err != nil {
		return nil, errors.Wrap(err, "[UpdateProfile] request failed")
	}
	return &user, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, update UserPreferencesUpdate) (*UserRead, error) {
	var user UserRead
	if err := s.api.DoJSON(ctx, http.MethodPatch, preferencesPath, update, &user); err != nil {
		return nil, errors.Wrap(err, "[UpdatePreferences] request failed")
	}
	return &user, nil
}

func (s *Service) ChangeEmail(ctx context.Context, email string) (*UserRead, error) {
	var user UserRead
	if err := s.api.DoJSON(ctx, http.MethodPatch, changeEmailPath, ChangeEmailRequest{Email: email}, &user); err != nil {
		return nil, errors.Wrap(err, "[ChangeEmail] request failed")
	}
	return &user, nil
}

// UploadProfilePicture replaces the profile picture. The content type is
// taken from the file extension.
func (s *Service) UploadProfilePicture(ctx context.Context, fileName string, content io.Reader) (*UserRead, error) {
	var user UserRead
	if err := s.api.DoMultipart(ctx, http.MethodPost, profilePicturePath, []httpclient.Part{picturePart(fileName, content)}, &user); err != nil {
		return nil, errors.Wrap(err, "[UploadProfilePicture] request failed")
	}
	return &user, nil
}

func (s *Service) ProfilePicture(ctx context.Context) (*Picture, error) {
	return s.download(ctx, profilePicturePath)
}

func (s *Service) UploadSessionPicture(ctx context.Context, fileName string, content io.Reader) (*SessionPictureResponse, error) {
	var resp SessionPictureResponse
	if err := s.api.DoMultipart(ctx, http.MethodPost, sessionPicturePath, []httpclient.Part{picturePart(fileName, content)}, &resp); err != nil {
		return nil, errors.Wrap(err, "[UploadSessionPicture] request failed")
	}
	return &resp, nil
}

func (s *Service) SessionPicture(ctx context.Context) (*Picture, error) {
	return s.download(ctx, sessionPicturePath)
}

// Deactivate deletes the account server side. Local credentials are left to
// the caller.
func (s *Service) Deactivate(ctx context.Context) error {
	if err := s.api.DoJSON(ctx, http.MethodDelete, mePath, nil, nil); err != nil {
		return errors.Wrap(err, "[Deactivate] request failed")
	}
	return nil
}

func (s *Service) download(ctx context.Context, path string) (*Picture, error) {
	data, contentType, err := s.api.DoRaw(ctx, http.MethodGet, path)
	if err != nil {
		return nil, errors.Wrapf(err, "[download] %s", path)
	}
	return &Picture{Data: data, ContentType: contentType}, nil
}

func picturePart(fileName string, content io.Reader) httpclient.Part {
	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" {
		contentType = defaultPictureType
	}
	return httpclient.Part{Field: pictureField, FileName: filepath.Base(fileName), ContentType: contentType, Content: content}
}
