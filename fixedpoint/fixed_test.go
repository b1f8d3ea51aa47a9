package fixedpoint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddSaturates(t *testing.T) {
	tests := []struct {
		name string
		a, b Fixed
		want Fixed
	}{
		{"normal", FromInt(2), FromInt(3), FromInt(5)},
		{"zero", Zero, Zero, Zero},
		{"saturate high", MaxFixed, FromInt(1), MaxFixed},
		{"saturate low", MinFixed, FromInt(-1), MinFixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.a.Add(tt.b))
		})
	}
}

func TestSubSaturates(t *testing.T) {
	require.Equal(t, FromInt(1), FromInt(3).Sub(FromInt(2)))
	require.Equal(t, MinFixed, MinFixed.Sub(FromInt(1)))
	require.Equal(t, MaxFixed, FromInt(0).Sub(MinFixed))
}

func TestMulUsesWideIntermediate(t *testing.T) {
	a := FromInt(10_000_000)
	b := FromInt(10_000_000)
	require.Equal(t, MaxFixed, a.Mul(b), "product should saturate rather than wrap")

	half := Fixed(Scale / 2)
	require.Equal(t, half, FromInt(1).Mul(half))
}

func TestDivByZeroSentinel(t *testing.T) {
	require.Equal(t, MaxFixed, FromInt(5).Div(Zero))
	require.Equal(t, MinFixed, FromInt(-5).Div(Zero))
}

func TestDivRoundTrip(t *testing.T) {
	a := FromInt(10)
	b := FromInt(4)
	require.Equal(t, Fixed(2_500_000), a.Div(b))
}

func TestClamp(t *testing.T) {
	require.Equal(t, FromInt(5), FromInt(10).Clamp(FromInt(0), FromInt(5)))
	require.Equal(t, FromInt(0), FromInt(-10).Clamp(FromInt(0), FromInt(5)))
}

func TestStrictOverflow(t *testing.T) {
	_, err := Strict(func() Fixed { return MaxFixed.Add(FromInt(1)) }, true)
	require.ErrorIs(t, err, ErrOverflow)

	_, err = Strict(func() Fixed { return FromInt(1).Add(FromInt(1)) }, false)
	require.NoError(t, err)
}

func TestNegMinSaturates(t *testing.T) {
	require.Equal(t, MaxFixed, MinFixed.Neg())
}

func TestMulDivUint64(t *testing.T) {
	got, err := MulDivUint64(21_000_000_000_000, 5_000, 10_000)
	require.NoError(t, err)
	require.Equal(t, uint64(10_500_000_000_000), got)

	_, err = MulDivUint64(1, 1, 0)
	require.ErrorIs(t, err, ErrDivByZero)
}

func TestMulDivUint64RejectsOverflow(t *testing.T) {
	_, err := MulDivUint64(1<<63, 1<<63, 1)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestWeightedSum(t *testing.T) {
	values := []int64{100, -5, 2}
	weights := []int64{3, -5, 10}
	got, err := WeightedSum(values, weights, 1)
	require.NoError(t, err)
	require.Equal(t, int64(100*3+(-5)*(-5)+2*10), got)

	_, err = WeightedSum(values, weights, 0)
	require.ErrorIs(t, err, ErrDivByZero)
}

func TestSaturatingWeightedSumSaturates(t *testing.T) {
	got := SaturatingWeightedSum([]int64{math.MaxInt64}, []int64{2}, 1)
	require.Equal(t, int64(math.MaxInt64), got)

	got = SaturatingWeightedSum([]int64{math.MinInt64}, []int64{2}, 1)
	require.Equal(t, int64(math.MinInt64), got)
}

func TestSum(t *testing.T) {
	got, err := Sum(1, 2, 3, -1)
	require.NoError(t, err)
	require.Equal(t, int64(5), got)

	_, err = Sum(int64(1)<<62, int64(1)<<62, int64(1)<<62)
	require.ErrorIs(t, err, ErrOverflow)
}
