package catalog

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const StorefrontTTL = 5 * time.Minute

// StorefrontCacheKey is dropped by every catalog write.
func StorefrontCacheKey(tenantID string) string {
	return "storefront:" + tenantID
}

// Storefront is the public read model of a tenant's catalog.
type Storefront struct {
	Segments []Segment `json:"segments"`
	Services []Service `json:"services"`
}

func LoadStorefront(ctx context.Context, db *gorm.DB, tenantID string) (*Storefront, error) {
	segments, err := ListSegments(ctx, db, tenantID, true)
	if err != nil {
		return nil, err
	}
	services, err := ListServices(ctx, db, tenantID, true)
	if err != nil {
		return nil, err
	}
	if segments == nil {
		segments = []Segment{}
	}
	if services == nil {
		services = []Service{}
	}
	return &Storefront{Segments: segments, Services: services}, nil
}
