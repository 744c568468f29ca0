package models

// TimeSlot is an immutable catalog entry describing one period of the school day.
// Rows are seeded once and never mutated.
type TimeSlot struct {
	Period    int    `db:"period" json:"period"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
}
