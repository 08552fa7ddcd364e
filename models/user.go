package models

// User represents one row of the `myusers` table.
// ID is assigned by the database on insert.
type User struct {
	ID        int64  `db:"id" json:"id"`
	FirstName string `db:"firstname" json:"first_name"`
	LastName  string `db:"lastname" json:"last_name"`
	Age       int    `db:"age" json:"age"`
}
