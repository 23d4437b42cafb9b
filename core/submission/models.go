package submission

import (
	"io"
	"time"
)

// Rubric holds the structured grading fields.
type Rubric struct {
	Design  string `json:"design"`
	Clarity string `json:"clarity"`
}

type Submission struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	StudentID   string    `json:"student_id"`
	FileName    string    `json:"file_name"`
	FilePath    string    `json:"-"`
	FileURL     string    `json:"file_url"`
	SubmittedAt time.Time `json:"submitted_at"` // UTC
	Grade       *int      `json:"grade"`
	Feedback    *string   `json:"feedback"`
	Rubric      *Rubric   `json:"rubric"`
	GradedAt    time.Time `json:"graded_at"` // UTC; zero until graded
	GradedBy    string    `json:"graded_by,omitempty"`

	// embedded student, filled in on listings
	StudentName  string `json:"student_name,omitempty"`
	StudentEmail string `json:"student_email,omitempty"`
}

func (s Submission) IsGraded() bool { return s.Grade != nil }

// File is an uploaded artifact.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// GradeRequest grades a submission on a [0, MaxGrade] scale; MaxGrade defaults to DefaultMaxGrade.
type GradeRequest struct {
	Grade    *int    `json:"grade" validate:"required"`
	Feedback string  `json:"feedback"`
	Rubric   *Rubric `json:"rubric"`
	MaxGrade int     `json:"max_grade" validate:"min=0"`
}

type GetFilter struct {
	ID        string
	TaskID    string
	StudentID string
}

type QueryFilter struct {
	TaskID    string
	TaskIDs   []string
	StudentID string
}
