package models

import "time"

// PresenceEntry is the stored online/offline state of a username.
type PresenceEntry struct {
	Username string    `json:"username"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}
