package util

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{in: "(555) 123-4567", want: "5551234567"},
		{in: " +1 555.123.4567 ", want: "+15551234567"},
		{in: "0044 20 7946 0958", want: "+442079460958"},
		{in: "+1+555", want: "+1555"},
		{in: "", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhone(tc.in))
		})
	}
}

func TestNewULID(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)

	_, err := ulid.ParseStrict(a)
	require.NoError(t, err)
	assert.Len(t, a, 26)
}
