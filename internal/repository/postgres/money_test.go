package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumericStringToCents(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"100", 10000},
		{"100.50", 10050},
		{"0.99", 99},
		{"0.00", 0},
		{"5.5", 550},
		{"  50.25  ", 5025},
		{"-10.50", -1050},
		{"99.999", 10000}, // rounds half up on the third digit
		{"99.994", 9999},
		{"9999999999.99", 999999999999},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := numericStringToCents(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNumericStringToCents_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "$100.00", "10.5.5"} {
		t.Run(input, func(t *testing.T) {
			_, err := numericStringToCents(input)
			assert.Error(t, err)
		})
	}
}

func TestCentsToNumericString(t *testing.T) {
	assert.Equal(t, "100.00", centsToNumericString(10000))
	assert.Equal(t, "0.99", centsToNumericString(99))
	assert.Equal(t, "0.00", centsToNumericString(0))
	assert.Equal(t, "0.01", centsToNumericString(1))
	assert.Equal(t, "-10.50", centsToNumericString(-1050))
	assert.Equal(t, "-0.01", centsToNumericString(-1))
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, cents := range []int64{0, 1, 10, 999, 12345, 999999999999, -100, -12345} {
		str := centsToNumericString(cents)
		back, err := numericStringToCents(str)
		require.NoError(t, err)
		assert.Equal(t, cents, back, "via %s", str)
	}
}
