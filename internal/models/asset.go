package models

import "time"

// Asset is an uploaded file referenced by portfolio content.
type Asset struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"file_name"`
	StoredPath string    `json:"stored_path"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}
