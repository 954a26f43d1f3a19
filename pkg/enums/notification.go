package enums

import "fmt"

// NotificationType classifies local notification records.
type NotificationType string

const (
	NotificationTypeGeneric       NotificationType = "generic"
	NotificationTypeClaimCreated  NotificationType = "claim_created"
	NotificationTypeClaimApproved NotificationType = "claim_approved"
	NotificationTypeClaimRejected NotificationType = "claim_rejected"
	NotificationTypeListingExpiry NotificationType = "listing_expired"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeGeneric,
	NotificationTypeClaimCreated,
	NotificationTypeClaimApproved,
	NotificationTypeClaimRejected,
	NotificationTypeListingExpiry,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
