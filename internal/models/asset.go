package models

import "time"

// Asset is a binary object held in the external object store.
// FileID is the storage-native key used to delete the object.
type Asset struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Bucket      string    `json:"bucket" gorm:"type:varchar(255);not null"`
	FileURL     string    `json:"file_url" gorm:"type:text;not null"`
	FileID      string    `json:"file_id" gorm:"type:varchar(512);uniqueIndex;not null"`
	ContentType string    `json:"content_type,omitempty" gorm:"type:varchar(120)"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// FileIDs returns the storage keys of the given assets.
func FileIDs(assets []Asset) []string {
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.FileID)
	}
	return ids
}
