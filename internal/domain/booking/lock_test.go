package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockKey(t *testing.T) {
	k := LockKey("tenant-a", "svc-1", "2026-11-02")
	assert.Equal(t, k, LockKey("tenant-a", "svc-1", "2026-11-02"))

	assert.NotEqual(t, k, LockKey("tenant-b", "svc-1", "2026-11-02"))
	assert.NotEqual(t, k, LockKey("tenant-a", "svc-2", "2026-11-02"))
	assert.NotEqual(t, k, LockKey("tenant-a", "svc-1", "2026-11-03"))

	// field boundaries are part of the key
	assert.NotEqual(t, LockKey("ab", "c", "d"), LockKey("a", "bc", "d"))
}
