package model

import "time"

type Template struct {
	ID        int       `db:"id" json:"id"`
	CompanyID int       `db:"company_id" json:"company_id"`
	Name      string    `db:"name" json:"name"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
