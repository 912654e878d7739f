// Package model provides capability-based model selection for campaign steps.
// Steps ask for a capability (writing, reviewing) instead of a model name and
// the registry resolves it to an ordered chain of endpoints.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityWriting is for creative ad copy generation and revision.
	CapabilityWriting Capability = "writing"

	// CapabilityReviewing is for compliance review of drafted copy.
	CapabilityReviewing Capability = "reviewing"

	// CapabilityFast is for quick, low-cost responses.
	CapabilityFast Capability = "fast"
)

// RoleCapabilities maps campaign step roles to their default capability.
var RoleCapabilities = map[string]Capability{
	"writer":   CapabilityWriting,
	"reviewer": CapabilityReviewing,
}

// CapabilityForRole returns the default capability for a given role.
// Unknown roles get CapabilityWriting.
func CapabilityForRole(role string) Capability {
	if cap, ok := RoleCapabilities[role]; ok {
		return cap
	}
	return CapabilityWriting
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityWriting, CapabilityReviewing, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}
