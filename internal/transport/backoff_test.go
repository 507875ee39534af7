package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffPolicy_Doubles(t *testing.T) {
	b := BackoffPolicy{Base: 100 * time.Millisecond, Max: time.Second, MaxRetries: 5}

	wait0, ok := b.Next(0)
	assert.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, wait0)

	wait1, ok := b.Next(1)
	assert.True(t, ok)
	assert.Equal(t, 200*time.Millisecond, wait1)

	wait2, ok := b.Next(2)
	assert.True(t, ok)
	assert.Equal(t, 400*time.Millisecond, wait2)
}

func TestBackoffPolicy_CapsAtMax(t *testing.T) {
	b := BackoffPolicy{Base: time.Second, Max: 3 * time.Second, MaxRetries: 10}
	wait, ok := b.Next(5)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, wait)
}

func TestBackoffPolicy_ExhaustsRetries(t *testing.T) {
	b := BackoffPolicy{Base: time.Millisecond, Max: time.Second, MaxRetries: 2}
	_, ok := b.Next(2)
	assert.False(t, ok)
}

func TestDefaultBackoffPolicy(t *testing.T) {
	b := DefaultBackoffPolicy()
	assert.Equal(t, 500*time.Millisecond, b.Base)
	assert.Equal(t, 5, b.MaxRetries)
}
