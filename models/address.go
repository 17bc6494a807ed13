package models

import "time"

type Address struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	IP        string    `json:"ip" gorm:"uniqueIndex;size:45;not null"`
	CreatedAt time.Time `json:"created_at"`
}
