package timeentry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	t.Run("hours and minutes", func(t *testing.T) {
		t.Parallel()

		d, err := ParseDuration("1h30m")
		require.NoError(t, err)
		require.Equal(t, 90*time.Minute, d)
	})

	t.Run("minutes only", func(t *testing.T) {
		t.Parallel()

		d, err := ParseDuration("90m")
		require.NoError(t, err)
		require.Equal(t, 90*time.Minute, d)
	})

	t.Run("decimal hours", func(t *testing.T) {
		t.Parallel()

		d, err := ParseDuration("1.5h")
		require.NoError(t, err)
		require.Equal(t, 90*time.Minute, d)
	})

	t.Run("bare number is minutes", func(t *testing.T) {
		t.Parallel()

		d, err := ParseDuration("45")
		require.NoError(t, err)
		require.Equal(t, 45*time.Minute, d)
	})

	t.Run("surrounding whitespace", func(t *testing.T) {
		t.Parallel()

		d, err := ParseDuration("  2h ")
		require.NoError(t, err)
		require.Equal(t, 2*time.Hour, d)
	})

	t.Run("zero rejected", func(t *testing.T) {
		t.Parallel()

		_, err := ParseDuration("0")
		require.Error(t, err)
	})

	t.Run("negative rejected", func(t *testing.T) {
		t.Parallel()

		_, err := ParseDuration("-30m")
		require.Error(t, err)
	})

	t.Run("empty rejected", func(t *testing.T) {
		t.Parallel()

		_, err := ParseDuration("   ")
		require.Error(t, err)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		t.Parallel()

		_, err := ParseDuration("soon")
		require.Error(t, err)
	})
}
