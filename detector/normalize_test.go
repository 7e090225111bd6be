package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	d := newDetector(t, Options{})

	tests := []struct {
		in, want string
	}{
		{"NETFLIX.COM", "NETFLIX"},
		{"NFLX 1024", "NETFLIX"},
		{"POS PURCHASE STARBUCKS #1234 08/14", "STARBUCKS"},
		{"AMC THEATRES 0123", "AMC THEATRES"},
		{"DEBIT CARD PURCHASE SHELL OIL 57442", "SHELL OIL"},
		{"Uber Eats 12/03 help.uber.com", "UBER EATS"},
		{"UBER TRIP 3/4", "UBER"},
		{"ACH ID: 98765 CITY WATER", "CITY WATER"},
		{"DEBIT AUTH CARD ACME", "ACME"},
		{"Spotify USA", "SPOTIFY"},
		{"  corner   deli  ", "CORNER DELI"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := d.Normalize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, d.Normalize(got), "normalization must be idempotent")
		})
	}
}

func TestNormalize_NoAliases(t *testing.T) {
	n := NewNormalizer([]string{"visa"}, nil)
	assert.Equal(t, "NETFLIX.COM", n.Normalize("visa netflix.com 11/02"))
}

func TestTokenSetRatio(t *testing.T) {
	assert.Equal(t, 100, TokenSetRatio("NETFLIX", "NETFLIX"))
	assert.Equal(t, 0, TokenSetRatio("", ""))
	assert.Equal(t, 0, TokenSetRatio("", "CITY GYM"))
	assert.Equal(t, 0, TokenSetRatio("#### ", "CITY GYM"))
	assert.Equal(t, 100, TokenSetRatio("GYM ACME", "acme gym gym"))
	assert.Equal(t, 89, TokenSetRatio("NFLX 1024", "NFLX 0924"))
	assert.Less(t, TokenSetRatio("NETFLIX", "SPOTIFY"), 80)

	pairs := [][2]string{
		{"NFLX 1024", "NFLX 0924"},
		{"ACME GYM DUES", "ACME GYM MEMBER DUES"},
		{"HULU", "HULU PLUS"},
	}
	for _, p := range pairs {
		assert.Equal(t, TokenSetRatio(p[0], p[1]), TokenSetRatio(p[1], p[0]), "%q vs %q", p[0], p[1])
	}
}
