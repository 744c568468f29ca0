package models

import "time"

// Subject represents an academic subject.
type Subject struct {
	ID        string      `db:"id" json:"id"`
	Code      string      `db:"code" json:"code"`
	Name      string      `db:"name" json:"name"`
	Kind      SubjectKind `db:"kind" json:"kind"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}
