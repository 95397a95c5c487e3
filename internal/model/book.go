package model

import "time"

// Book represents a catalog entry. Stock counts the copies on the shelf.
type Book struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Title         string    `json:"title" gorm:"size:255;not null;index"`
	Author        string    `json:"author" gorm:"size:255;not null;index"`
	Description   string    `json:"description" gorm:"type:text"`
	Stock         int       `json:"stock" gorm:"not null;default:0;check:stock >= 0"`
	CoverImageURL *string   `json:"cover_image_url" gorm:"size:512"`
	CreatedAt     time.Time `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BookFilter narrows a catalog listing. Empty fields are ignored.
type BookFilter struct {
	Title  string
	Author string
}
