package campaign

import (
	"strings"

	"github.com/c360studio/adpilot/compliance"
)

// IsApproval reports whether reviewer feedback approves the draft. It is a
// case-insensitive substring match on APPROVED, kept in one place so a
// structured verdict can replace it without touching the router.
func IsApproval(feedback string) bool {
	return strings.Contains(strings.ToUpper(feedback), compliance.Approved)
}
