package flagup

import "regexp"

// handlePattern matches the site's handle rules: 1-15 word characters.
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// ValidHandle reports whether s is a well-formed account handle.
// Handles are matched case-sensitively as extracted from markup; validity
// itself is case-insensitive.
func ValidHandle(s string) bool {
	return handlePattern.MatchString(s)
}

// ReservedRoutes are path segments of the host site that look like profile
// links but are application routes. Anchors pointing at these are never
// treated as handles.
var ReservedRoutes = map[string]bool{
	"home":          true,
	"explore":       true,
	"notifications": true,
	"messages":      true,
	"search":        true,
	"settings":      true,
	"compose":       true,
	"hashtag":       true,
	"jobs":          true,
	"i":             true,
	"login":         true,
	"logout":        true,
	"signup":        true,
	"about":         true,
	"privacy":       true,
	"tos":           true,
}
