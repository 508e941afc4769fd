package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-moment-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestPointerHelpers(t *testing.T) {
	var missing *int
	require.Equal(t, 0, utils.Value(missing))
	require.Equal(t, 18, utils.ValueOr(missing, 18))
	require.Equal(t, 42, utils.Value(utils.Ptr(42)))
	require.Equal(t, "bio", utils.ValueOr(utils.Ptr("bio"), "none"))
}
