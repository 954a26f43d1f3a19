package enums

import "fmt"

// ClaimStatus tracks a recipient's request against a listing.
type ClaimStatus string

const (
	ClaimStatusPending   ClaimStatus = "pending"
	ClaimStatusCollected ClaimStatus = "collected"
	ClaimStatusCancelled ClaimStatus = "cancelled"
)

var validClaimStatuses = []ClaimStatus{
	ClaimStatusPending,
	ClaimStatusCollected,
	ClaimStatusCancelled,
}

// String implements fmt.Stringer.
func (s ClaimStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ClaimStatus.
func (s ClaimStatus) IsValid() bool {
	for _, candidate := range validClaimStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsActive reports whether the claim still drives the listing's claimed state.
func (s ClaimStatus) IsActive() bool {
	return s != ClaimStatusCancelled
}

// ParseClaimStatus converts raw input into a ClaimStatus. "received" is
// accepted as an alias of collected.
func ParseClaimStatus(value string) (ClaimStatus, error) {
	if value == "received" {
		return ClaimStatusCollected, nil
	}
	for _, candidate := range validClaimStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid claim status %q", value)
}
