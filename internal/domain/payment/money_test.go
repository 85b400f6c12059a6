package payment

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinor(t *testing.T) {
	tests := []struct {
		name     string
		major    string
		currency string
		want     int64
		wantErr  bool
	}{
		{name: "whole rupees", major: "499", currency: "INR", want: 49900},
		{name: "rupees and paise", major: "1098.50", currency: "INR", want: 109850},
		{name: "lower case currency", major: "1.01", currency: "inr", want: 101},
		{name: "zero decimal currency", major: "500", currency: "JPY", want: 500},
		{name: "three decimal currency", major: "1.234", currency: "KWD", want: 1234},
		{name: "sub-paise precision", major: "10.005", currency: "INR", wantErr: true},
		{name: "zero", major: "0", currency: "INR", wantErr: true},
		{name: "negative", major: "-5", currency: "INR", wantErr: true},
		{name: "overflow", major: "100000000000000000000", currency: "INR", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToMinor(decimal.RequireFromString(tt.major), tt.currency)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMajor(t *testing.T) {
	assert.True(t, decimal.RequireFromString("1098.5").Equal(ToMajor(109850, "INR")))
	assert.True(t, decimal.NewFromInt(500).Equal(ToMajor(500, "JPY")))
}
