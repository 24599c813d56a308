package model

type Contact struct {
	ID        int    `db:"id" json:"id"`
	CompanyID int    `db:"company_id" json:"company_id"`
	Phone     string `db:"phone" json:"phone"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
}
