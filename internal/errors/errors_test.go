package errors_test

import (
	"context"
	"fmt"
	"testing"

	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestRefreshErrorsWrapAuthExpired(t *testing.T) {
	require.ErrorIs(t, moerrors.ErrNoRefreshToken, moerrors.ErrAuthExpired)
	require.ErrorIs(t, moerrors.ErrRefreshTokenExpired, moerrors.ErrAuthExpired)
	require.NotErrorIs(t, moerrors.ErrNoCredentials, moerrors.ErrAuthExpired)
}

func TestTransportErrorUnwraps(t *testing.T) {
	err := moerrors.Wrapf(&moerrors.TransportError{Op: "GET", URL: "http://x", Err: context.DeadlineExceeded}, "fetch user")

	var transportErr *moerrors.TransportError
	require.True(t, moerrors.As(err, &transportErr))
	require.Equal(t, "GET", transportErr.Op)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStatusCode(t *testing.T) {
	err := fmt.Errorf("get user: %w", &moerrors.HTTPStatusError{Code: 404, Status: "404 Not Found"})
	require.Equal(t, 404, moerrors.StatusCode(err))
	require.Equal(t, 0, moerrors.StatusCode(moerrors.ErrEmptyBody))
	require.Contains(t, err.Error(), "unexpected status 404")
}

func TestDecodeErrorWrapsEmptyBody(t *testing.T) {
	err := &moerrors.DecodeError{Err: moerrors.ErrEmptyBody}
	require.ErrorIs(t, err, moerrors.ErrEmptyBody)
	require.Equal(t, "decode response: empty response body", err.Error())
}

func TestWrapfNil(t *testing.T) {
	require.NoError(t, moerrors.Wrapf(nil, "nothing %d", 1))
}
