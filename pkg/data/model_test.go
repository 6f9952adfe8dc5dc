package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChapterNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1", 1, true},
		{"12.5", 12.5, true},
		{"", 0, false},
		{"This is test", 0, false},
	}
	for _, tt := range tests {
		got, ok := ChapterNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-06-01T00:00:00Z",
		"2024-06-01T00:00:00+00:00",
		"2024-06-01 00:00:00",
		"2024-06-01",
	} {
		got, ok := ParseDate(in)
		assert.True(t, ok, in)
		assert.True(t, want.Equal(got), in)
	}

	_, ok := ParseDate("yesterday")
	assert.False(t, ok)
}
