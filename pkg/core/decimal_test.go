package core

import (
	"errors"
	"testing"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"integer", "10", "10", false},
		{"high precision", "0.000000000000000001", "0.000000000000000001", false},
		{"surrounding spaces", " 5.5 ", "5.5", false},
		{"zero", "0", "", true},
		{"negative", "-1", "", true},
		{"garbage", "ten", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParsePrice(t *testing.T) {
	price, err := ParsePrice("102.5")
	require.NoError(t, err)
	assert.True(t, price.Equal(fpdecimal.FromFloat(102.5)))

	price, err = ParsePrice("")
	require.NoError(t, err)
	assert.True(t, price.Equal(fpdecimal.Zero))

	_, err = ParsePrice("-3")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = ParsePrice("abc")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	price, err = ParsePrice("1.2340")
	require.NoError(t, err)
	want, err := fpdecimal.FromString("1.234")
	require.NoError(t, err)
	assert.True(t, price.Equal(want), "got %s", price)

	price, err = ParsePrice("1e3")
	require.NoError(t, err)
	assert.True(t, price.Equal(fpdecimal.FromInt(1000)))

	price, err = ParsePrice("10000000000")
	require.NoError(t, err)
	assert.True(t, price.Equal(MaxPrice))
}

func TestParsePriceRejectsLostPrecision(t *testing.T) {
	for _, input := range []string{"0.0005", "1.2345", "102.5001"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParsePrice(input)
			assert.ErrorIs(t, err, ErrInvalidPrice)
		})
	}
}

func TestParsePriceRejectsOutOfRange(t *testing.T) {
	for _, input := range []string{"10000000000.001", "100000000000", "9223372036854775807"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParsePrice(input)
			assert.ErrorIs(t, err, ErrInvalidPrice)
		})
	}
}

func TestParseSlippage(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"0", false},
		{"5", false},
		{"0.5", false},
		{"100", false},
		{"", false},
		{"100.001", true},
		{"0.0005", true},
		{"1.2345", true},
		{"99.9999", true},
		{"2.5000", false},
		{"-1", true},
		{"five", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseSlippage(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSlippage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPriceBand(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		slippage float64
		min      float64
		max      float64
	}{
		{"five percent", 100, 5, 95, 105},
		{"no slippage", 102, 0, 102, 102},
		{"one percent", 100, 1, 99, 101},
		{"fractional slippage", 200, 0.5, 199, 201},
		{"full slippage", 10, 100, 0, 20},
		{"largest price", 1e10, 100, 0, 2e10},
		{"largest price half slippage", 1e10, 50, 5e9, 1.5e10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			band := NewPriceBand(fpdecimal.FromFloat(tt.price), fpdecimal.FromFloat(tt.slippage))
			assert.True(t, band.Min.Equal(fpdecimal.FromFloat(tt.min)), "min: got %s", band.Min)
			assert.True(t, band.Max.Equal(fpdecimal.FromFloat(tt.max)), "max: got %s", band.Max)
		})
	}
}

func TestPriceBandOverlaps(t *testing.T) {
	band := func(price, slippage float64) PriceBand {
		return NewPriceBand(fpdecimal.FromFloat(price), fpdecimal.FromFloat(slippage))
	}

	tests := []struct {
		name string
		a, b PriceBand
		want bool
	}{
		{"inside", band(100, 5), band(102, 0), true},
		{"disjoint", band(100, 1), band(110, 0), false},
		{"touching edge", band(100, 5), band(105, 0), true},
		{"both wide", band(100, 10), band(115, 10), true},
		{"largest price", band(1e10, 100), band(1e10, 0), true},
		{"largest price disjoint", band(1e10, 1), band(1e9, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}
