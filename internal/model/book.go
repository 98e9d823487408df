package model

import "time"

// Book は蔵書を表す。
// タイトル以外のフィールドは任意入力。
type Book struct {
	ID            string
	Title         string
	Author        string
	ISBN          string
	Description   string
	PublishedDate *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
