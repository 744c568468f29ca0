package dto

// ProgressCounts tallies lessons by lifecycle state. ScheduledPast narrows
// SCHEDULED to lessons already due, which feeds the completion denominator.
type ProgressCounts struct {
	Scheduled     int `json:"scheduled"`
	ScheduledPast int `json:"scheduledPast"`
	Completed     int `json:"completed"`
	Absent        int `json:"absent"`
	Makeup        int `json:"makeup"`
	Cancelled     int `json:"cancelled"`
}

// SubjectProgress is completion progress of one subject within a class.
type SubjectProgress struct {
	SubjectID      string         `json:"subjectId"`
	SubjectName    string         `json:"subjectName,omitempty"`
	Counts         ProgressCounts `json:"counts"`
	CompletionRate float64        `json:"completionRate"`
	AttendanceRate float64        `json:"attendanceRate"`
}

// ClassProgressResponse aggregates lesson completion for a class. CANCELLED
// lessons are excluded from every rate denominator.
type ClassProgressResponse struct {
	ClassID        string            `json:"classId"`
	AcademicYear   string            `json:"academicYear"`
	Overall        ProgressCounts    `json:"overall"`
	CompletionRate float64           `json:"completionRate"`
	AttendanceRate float64           `json:"attendanceRate"`
	Subjects       []SubjectProgress `json:"subjects"`
	CachedAt       string            `json:"cachedAt,omitempty"`
}
