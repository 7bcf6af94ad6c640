package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTestMode(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"true":  true,
		"1":     true,
		"TRUE":  true,
		"false": false,
		"0":     false,
		"yes":   false,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseTestMode(in), "HMS_TEST_MODE=%q", in)
	}
}
