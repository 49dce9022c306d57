package model

import "time"

type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	APIKey    string    `json:"-"`
	Credits   int       `json:"credits"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Lead struct {
	ID           int64          `json:"id"`
	ClientID     int64          `json:"client_id"`
	PhoneNumber  string         `json:"phone_number"`
	FirstName    string         `json:"first_name,omitempty"`
	LastName     string         `json:"last_name,omitempty"`
	Email        string         `json:"email,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

const UnknownName = "Unknown"

func (l Lead) FullName() string {
	name := l.FirstName
	if l.LastName != "" {
		if name != "" {
			name += " "
		}
		name += l.LastName
	}
	if name == "" {
		return UnknownName
	}
	return name
}

type Template struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"client_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
