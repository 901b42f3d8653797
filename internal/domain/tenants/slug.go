package tenants

import (
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
)

var (
	nonSlug   = regexp.MustCompile(`[^a-z0-9\-]+`)
	multiDash = regexp.MustCompile(`-+`)
	validSlug = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

const maxSlugLen = 48

// MakeSlug generates a URL-safe base slug from a business name.
// Example: "Bella's Hair & Nails" -> "bellas-hair-nails"
func MakeSlug(name string) string {
	base := strings.ToLower(strings.TrimSpace(name))
	base = strings.ReplaceAll(base, " ", "-")
	base = nonSlug.ReplaceAllString(base, "")
	base = multiDash.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	if len(base) > maxSlugLen {
		base = strings.Trim(base[:maxSlugLen], "-")
	}
	if base == "" {
		base = "studio"
	}
	return base
}

func IsValidSlug(s string) bool {
	return len(s) <= maxSlugLen+4 && validSlug.MatchString(s)
}

// UniqueSlug returns base, or base-2, base-3... whichever is free.
// Uniqueness is finally enforced by idx_tenants_slug; this only avoids the
// common collision.
func UniqueSlug(db *gorm.DB, base string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("db is nil")
	}

	var taken []string
	if err := db.Model(&Tenant{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &taken).Error; err != nil {
		return "", err
	}
	return nextFreeSlug(base, taken), nil
}

func nextFreeSlug(base string, taken []string) string {
	set := make(map[string]struct{}, len(taken))
	for _, s := range taken {
		set[s] = struct{}{}
	}
	if _, ok := set[base]; !ok {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if _, ok := set[candidate]; !ok {
			return candidate
		}
	}
}

// BuildStorefrontURL builds the public storefront URL from a slug.
func BuildStorefrontURL(appURL, slug string) string {
	return strings.TrimRight(appURL, "/") + "/t/" + slug
}
