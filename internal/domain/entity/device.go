// Package entity contains the core business objects of the project.
package entity

import "time"

// MaxDevices is the hard cap on devices registered per account.
const MaxDevices = 3

// Device represents one client installation authorized for an account.
type Device struct {
	ID         string    `json:"id"`                   // Client-generated id, stable for the installation.
	Descriptor string    `json:"descriptor"`           // Coarse client description, e.g. "archerctl/linux".
	LastActive time.Time `json:"last_active"`          // Bumped on every sign-in from this device.
	PushToken  string    `json:"push_token,omitempty"` // Optional FCM registration token.
}
