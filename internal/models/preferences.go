package models

import "time"

// Preferences holds UI settings shared by every client.
type Preferences struct {
	Theme     string    `json:"theme"`
	Language  string    `json:"language"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPreferences returns the settings used before anything is saved.
func DefaultPreferences() Preferences {
	return Preferences{Theme: "light", Language: "es"}
}
