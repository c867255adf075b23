package model

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContent(t *testing.T) {
	c := NewContent("hello", PriorityHigh, 50*time.Millisecond)

	_, err := ulid.Parse(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", c.Text)
	assert.Equal(t, PriorityHigh, c.Priority)
	assert.Equal(t, 50*time.Millisecond, c.Duration)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestNewContent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for range 500 {
		c := NewContent("x", PriorityNormal, 0)
		require.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}

func TestNewContent_ClampsInput(t *testing.T) {
	c := NewContent("x", Priority(42), -time.Second)

	assert.Equal(t, PriorityNormal, c.Priority)
	assert.Equal(t, time.Duration(0), c.Duration)
	assert.True(t, c.Indefinite())
	assert.True(t, c.ExpiresAt().IsZero())
}

func TestContent_ExpiresAt(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := &Content{Duration: 3 * time.Second, CreatedAt: created}

	assert.False(t, c.Indefinite())
	assert.Equal(t, created.Add(3*time.Second), c.ExpiresAt())
}

func TestPriority_String(t *testing.T) {
	tests := []struct {
		priority Priority
		expected string
	}{
		{PriorityLow, "low"},
		{PriorityNormal, "normal"},
		{PriorityHigh, "high"},
		{PriorityCritical, "critical"},
		{Priority(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.priority.String())
		})
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input    string
		expected Priority
		wantErr  bool
	}{
		{"low", PriorityLow, false},
		{"NORMAL", PriorityNormal, false},
		{" high ", PriorityHigh, false},
		{"critical", PriorityCritical, false},
		{"", PriorityNormal, false},
		{"urgent", PriorityNormal, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePriority(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownPriority)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestContent_TextTruncated(t *testing.T) {
	c := &Content{Text: "line one\nline   two"}

	assert.Equal(t, "line one line two", c.TextTruncated(100))
	assert.Equal(t, "line o...", c.TextTruncated(9))
	assert.Equal(t, "lin", c.TextTruncated(3))
	assert.Equal(t, "", c.TextTruncated(0))
}
