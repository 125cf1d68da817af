package tenant

import (
	"regexp"
	"strings"
)

// ToSnake converts a kebab-case slug into snake_case for schema names.
func ToSnake(slug string) string {
	return strings.ReplaceAll(strings.ToLower(slug), "-", "_")
}

// BuildSchemaName returns the canonical PostgreSQL schema name for a tenant
// given the tenant slug transformed to snake_case. Format: tenant_<slugSnake>.
func BuildSchemaName(slugSnake string) string {
	return "tenant_" + slugSnake
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidSlug reports whether slug is usable as a tenant identifier:
// lowercase alphanumerics and dashes, no leading/trailing dash.
func ValidSlug(slug string) bool {
	return slug != "" && len(slug) <= 63 && slugPattern.MatchString(slug)
}
