package amount

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddOverflow(t *testing.T) {
	_, err := Amount(math.MaxUint64).Add(1)
	require.ErrorIs(t, err, ErrOverflow)

	sum, err := Amount(1).Add(2)
	require.NoError(t, err)
	require.Equal(t, Amount(3), sum)
}

func TestSubUnderflow(t *testing.T) {
	_, err := Amount(1).Sub(2)
	require.Error(t, err)

	diff, err := Amount(5).Sub(2)
	require.NoError(t, err)
	require.Equal(t, Amount(3), diff)
}

func TestMulDivWidens(t *testing.T) {
	// The product exceeds uint64 but the quotient fits.
	a := Amount(math.MaxUint64)
	got, err := a.MulDiv(3, 4)
	require.NoError(t, err)
	require.Equal(t, Amount(13835058055282163711), got)
}

func TestMulDivByZero(t *testing.T) {
	_, err := Amount(10).MulDiv(1, 0)
	require.Error(t, err)
}

func TestString(t *testing.T) {
	require.Equal(t, "0", Amount(0).String())
	require.Equal(t, "1", Amount(OctasPerUnit).String())
	require.Equal(t, "1.5", Amount(150_000_000).String())
	require.Equal(t, "0.00000001", Amount(1).String())
	require.Equal(t, "12.34567891", Amount(1_234_567_891).String())
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Amount{
		"0":          0,
		"1":          OctasPerUnit,
		"1.5":        150_000_000,
		"0.00000001": 1,
		".5":         50_000_000,
		"10.":        10 * OctasPerUnit,
	} {
		got, err := Parse(in)
		require.NoError(t, err, "parse %q", in)
		require.Equal(t, want, got, "parse %q", in)
	}

	for _, in := range []string{"", "-1", "+2", "1.123456789", "abc", "1.2.3", "."} {
		_, err := Parse(in)
		require.Error(t, err, "parse %q should fail", in)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, a := range []Amount{0, 1, 99, OctasPerUnit, 150_000_000, 1_234_567_891} {
		got, err := Parse(a.String())
		require.NoError(t, err)
		require.Equal(t, a, got)
	}
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "30.00 seconds", FormatDuration(30*time.Second))
	require.Equal(t, "2.50 minutes", FormatDuration(150*time.Second))
	require.Equal(t, "2.00 hours", FormatDuration(2*time.Hour))
	require.Equal(t, "1.50 days", FormatDuration(36*time.Hour))
	require.Equal(t, "2.00 years", FormatDuration(2*12*4*7*24*time.Hour))
}
