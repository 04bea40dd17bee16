// Package events defines event types and publisher interfaces for gallery events.
package events

// AssetSavedEvent is emitted after an image has been written to the gallery.
type AssetSavedEvent struct {
	AssetID    string `json:"assetId"`
	SourcePath string `json:"sourcePath"`
	Format     string `json:"format"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	ByteSize   int64  `json:"byteSize"`
	SHA256     string `json:"sha256"`
	Backend    string `json:"backend"`
	Timestamp  string `json:"timestamp"`
}
