package booking

import (
	"context"
	"hash/fnv"

	"gorm.io/gorm"
)

// LockKey maps a (tenant, resource, date) triple onto the int64 space of
// pg_advisory_xact_lock. Collisions only serialize unrelated requests.
func LockKey(tenantID, resourceID, date string) int64 {
	h := fnv.New64a()
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write([]byte(resourceID))
	h.Write([]byte{0})
	h.Write([]byte(date))
	return int64(h.Sum64())
}

// lockDay blocks until the transaction owns the advisory lock. Postgres
// releases it at commit or rollback.
func lockDay(ctx context.Context, tx *gorm.DB, key int64) error {
	return tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", key).Error
}
