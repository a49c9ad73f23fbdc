package oauth

import "strings"

// groupClaimNames are the claim keys checked for group membership, in order.
// Providers disagree on the name; the first present claim wins.
var groupClaimNames = []string{"groups", "roles", "group", "memberOf"}

// extractGroups pulls group names out of a userinfo claim set. Accepts both
// list-valued claims and comma-separated strings.
func extractGroups(claims map[string]any) []string {
	for _, name := range groupClaimNames {
		v, ok := claims[name]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case []any:
			groups := make([]string, 0, len(val))
			for _, g := range val {
				if s, ok := g.(string); ok && s != "" {
					groups = append(groups, s)
				}
			}
			return groups
		case []string:
			return val
		case string:
			if val == "" {
				return nil
			}
			parts := strings.Split(val, ",")
			groups := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					groups = append(groups, p)
				}
			}
			return groups
		}
	}
	return nil
}

// isAdminByGroups reports whether any of the user's groups is in the
// configured admin set. Comparison is case-insensitive.
func isAdminByGroups(groups, adminGroups []string) bool {
	for _, g := range groups {
		for _, admin := range adminGroups {
			if strings.EqualFold(g, admin) {
				return true
			}
		}
	}
	return false
}
