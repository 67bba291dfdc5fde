package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCeilTime(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   time.Time
		p    time.Duration
		want time.Time
	}{
		{"ровное значение не меняется", base.Add(5 * time.Millisecond), time.Millisecond, base.Add(5 * time.Millisecond)},
		{"миллисекунды округляются вверх", base.Add(5*time.Millisecond + 1), time.Millisecond, base.Add(6 * time.Millisecond)},
		{"микросекунды округляются вверх", base.Add(7*time.Microsecond + 999), time.Microsecond, base.Add(8 * time.Microsecond)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CeilTime(tt.in, tt.p)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
			assert.False(t, got.Before(tt.in))
		})
	}
}

func TestNullString(t *testing.T) {
	assert.False(t, NullString(nil).Valid)

	s := "x"
	ns := NullString(&s)
	assert.True(t, ns.Valid)
	assert.Equal(t, "x", *StringPtr(ns))
	assert.Nil(t, StringPtr(NullString(nil)))
}
