package models

// Area is a sector of activity shared by projects and investor profiles.
type Area struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}
