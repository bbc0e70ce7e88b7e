package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-strava-broker/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	require.Equal(t, "", utils.Value[string](nil))
	require.Equal(t, "Leeds", utils.Value(utils.Ptr("Leeds")))
	require.Equal(t, 0, utils.Value[int](nil))
}

func TestCoalesce(t *testing.T) {
	require.Equal(t, "Ride", utils.Coalesce("", "Ride", "Run"))
	require.Equal(t, "", utils.Coalesce("", ""))
	require.Equal(t, "", utils.Coalesce[string]())
	require.Equal(t, int64(7), utils.Coalesce(int64(0), 7))
}
