package models

import (
	"fmt"
	"strings"
)

// DisplayName prefers "first last", then either name alone, then @username,
// and finally a placeholder built from the user id.
func (c *Contact) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
	if name != "" {
		return name
	}
	if c.Username != "" {
		return "@" + c.Username
	}
	return fmt.Sprintf("User %d", c.UserID)
}

// Merge copies non-empty profile fields from other into c and keeps the
// widest seen-at window.
func (c *Contact) Merge(other *Contact) {
	if other.Username != "" {
		c.Username = other.Username
	}
	if other.FirstName != "" {
		c.FirstName = other.FirstName
	}
	if other.LastName != "" {
		c.LastName = other.LastName
	}
	if other.Phone != "" {
		c.Phone = other.Phone
	}
	if c.FirstSeenAt.IsZero() || (!other.FirstSeenAt.IsZero() && other.FirstSeenAt.Before(c.FirstSeenAt)) {
		c.FirstSeenAt = other.FirstSeenAt
	}
	if other.LastMessageAt.After(c.LastMessageAt) {
		c.LastMessageAt = other.LastMessageAt
	}
}
