package shopify

import (
	"fmt"
	"strconv"
	"strings"
)

// GID builds a global id such as gid://shopify/ProductVariant/123
func GID(kind string, id int64) string {
	return fmt.Sprintf("gid://shopify/%s/%d", kind, id)
}

// ParseGID extracts the numeric id from a global id
func ParseGID(gid string) (int64, error) {
	// GID format: "gid://shopify/Product/123456"
	parts := strings.Split(gid, "/")
	if len(parts) < 4 {
		return 0, fmt.Errorf("invalid GID format: %s", gid)
	}

	id, err := strconv.ParseInt(parts[len(parts)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ID from GID: %w", err)
	}

	return id, nil
}
