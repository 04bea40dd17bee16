package db

import "time"

// Asset represents a row in the gallery_assets table.
type Asset struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path"`
	Format     string    `json:"format"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	ByteSize   int64     `json:"byte_size"`
	SHA256     string    `json:"sha256"`
	Data       []byte    `json:"-"`
	Created    time.Time `json:"created"`
}

// AuthorizationRecord represents a row in the photo_authorization table.
type AuthorizationRecord struct {
	Scope    string    `json:"scope"`
	State    string    `json:"state"`
	Modified time.Time `json:"modified"`
}
