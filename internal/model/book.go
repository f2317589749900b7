package model

import "time"

// Book represents a catalog entry.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type Book struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Rating        int       `json:"rating"`
	PublishedYear int       `json:"published_year"`
	CoverPath     string    `json:"cover_path,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
