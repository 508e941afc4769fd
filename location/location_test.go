package location_test

import (
	"context"
	"net/http"
	"testing"

	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/location"
	"github.com/jrsteele09/go-moment-client/momenttest"
	"github.com/stretchr/testify/require"
)

func TestCheckEligibility(t *testing.T) {
	srv := momenttest.New(t)
	api, _ := srv.NewClient(t, true)
	service, err := location.NewService(api)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("empty body is eligible", func(t *testing.T) {
		e, err := service.CheckEligibility(ctx)
		require.NoError(t, err)
		require.True(t, e.Eligible())
	})

	t.Run("missing requirements", func(t *testing.T) {
		srv.SetEligibility("profile_picture", "kyc")
		e, err := service.CheckEligibility(ctx)
		require.NoError(t, err)
		require.False(t, e.Eligible())
		require.Equal(t, []string{"profile_picture", "kyc"}, e.Missing)
	})

	t.Run("server error", func(t *testing.T) {
		srv.FailPath("/api/v1/location/eligibility/", http.StatusInternalServerError)
		_, err := service.CheckEligibility(ctx)
		require.Equal(t, http.StatusInternalServerError, moerrors.StatusCode(err))
	})
}

func TestCheckEligibilityWithoutLogin(t *testing.T) {
	srv := momenttest.New(t)
	api, _ := srv.NewClient(t, false)
	service, err := location.NewService(api)
	require.NoError(t, err)

	_, err = service.CheckEligibility(context.Background())
	require.Equal(t, http.StatusUnauthorized, moerrors.StatusCode(err))
}
