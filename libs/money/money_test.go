package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 2.68, Round2(2.675))
	assert.Equal(t, 33.33, Round2(33.333333))
	assert.Equal(t, -1.01, Round2(-1.005))
	assert.Equal(t, 0.0, Round2(0.004))
}

func TestSum(t *testing.T) {
	assert.Equal(t, 0.3, Sum(0.1, 0.2))
	assert.Equal(t, 0.0, Sum())
	assert.Equal(t, 100.0, Sum(33.33, 33.33, 33.34))
}

func TestNegligible(t *testing.T) {
	assert.True(t, Negligible(0))
	assert.True(t, Negligible(0.009))
	assert.True(t, Negligible(-0.009))
	assert.False(t, Negligible(0.01))
	assert.False(t, Negligible(-0.01))
}

func TestPercentsAddUp(t *testing.T) {
	tests := []struct {
		name string
		pcts []float64
		want bool
	}{
		{"exact", []float64{50, 50}, true},
		{"thirds", []float64{33.33, 33.33, 33.34}, true},
		{"lower edge", []float64{49.99, 50}, true},
		{"upper edge", []float64{50.01, 50}, true},
		{"just below", []float64{49.985, 50}, false},
		{"just above", []float64{50.015, 50}, false},
		{"two cents low", []float64{49.98, 50}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentsAddUp(tt.pcts))
		})
	}
}

func TestPercentOf(t *testing.T) {
	assert.Equal(t, 50.0, PercentOf(500, 1000))
	assert.Equal(t, 0.0, PercentOf(500, 0))
	assert.Equal(t, 0.0, PercentOf(500, -1))
	assert.Equal(t, 150.0, PercentOf(1500, 1000))
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		pcts   []float64
		want   []float64
	}{
		{
			name:   "even split",
			amount: 10,
			pcts:   []float64{50, 50},
			want:   []float64{5, 5},
		},
		{
			name:   "exact thirds",
			amount: 100,
			pcts:   []float64{33.33, 33.33, 33.34},
			want:   []float64{33.33, 33.33, 33.34},
		},
		{
			name:   "leftover cent to largest remainder",
			amount: 100,
			pcts:   []float64{33.333, 33.333, 33.334},
			want:   []float64{33.33, 33.33, 33.34},
		},
		{
			name:   "tie goes to earlier split",
			amount: 0.05,
			pcts:   []float64{50, 50},
			want:   []float64{0.03, 0.02},
		},
		{
			name:   "three way with tolerance",
			amount: 1000,
			pcts:   []float64{33.33, 33.33, 33.33},
			want:   []float64{333.3, 333.3, 333.3},
		},
		{
			name:   "zero percent share",
			amount: 80,
			pcts:   []float64{0, 100},
			want:   []float64{0, 80},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Allocate(tt.amount, tt.pcts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocate_SumsToRoundedTarget(t *testing.T) {
	cases := []struct {
		amount float64
		pcts   []float64
	}{
		{1234.57, []float64{12.5, 37.5, 50}},
		{99.99, []float64{14.2857, 14.2857, 14.2857, 14.2857, 14.2857, 14.2857, 14.2858}},
		{0.01, []float64{33.33, 33.33, 33.34}},
		{250, []float64{99.995, 0.01}},
	}
	for _, c := range cases {
		shares, err := Allocate(c.amount, c.pcts)
		require.NoError(t, err)
		target := Round2(c.amount * Sum(c.pcts...) / 100)
		assert.InDelta(t, target, Sum(shares...), 1e-9, "amount %v", c.amount)
		for i, s := range shares {
			raw := c.amount * c.pcts[i] / 100
			assert.InDelta(t, raw, s, 0.01+1e-9, "share %d of %v", i, c.amount)
		}
	}
}

func TestAllocate_Errors(t *testing.T) {
	_, err := Allocate(-1, []float64{100})
	assert.ErrorIs(t, err, ErrNegativeAmount)

	got, err := Allocate(10, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
