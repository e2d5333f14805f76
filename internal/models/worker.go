package models

type Worker struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Window       int    `json:"window"`
	IsAdmin      bool   `json:"is_admin"`
	CategoryID   *int64 `json:"category_id,omitempty"`
	PasswordHash string `json:"-"`
}

type Dashboard struct {
	Worker        Worker `json:"worker"`
	AcceptedToday int    `json:"accepted_today"`
	SkippedToday  int    `json:"skipped_today"`
	ServedToday   int    `json:"served_today"`
}
