package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/submission"
)

const submissionColumns = "id, task_id, student_id, file_name, file_path, file_url, submitted_at, grade, feedback, " +
	"rubric, graded_at, graded_by"

type submissionRow struct {
	ID          string             `db:"id"`
	TaskID      string             `db:"task_id"`
	StudentID   string             `db:"student_id"`
	FileName    string             `db:"file_name"`
	FilePath    string             `db:"file_path"`
	FileURL     string             `db:"file_url"`
	SubmittedAt null.Time          `db:"submitted_at"`
	Grade       null.Int           `db:"grade"`
	Feedback    null.String        `db:"feedback"`
	Rubric      types.NullJSONText `db:"rubric"`
	GradedAt    null.Time          `db:"graded_at"`
	GradedBy    null.String        `db:"graded_by"`
}

func newSubmissionRow(s submission.Submission) (submissionRow, error) {
	row := submissionRow{
		ID:          s.ID,
		TaskID:      s.TaskID,
		StudentID:   s.StudentID,
		FileName:    s.FileName,
		FilePath:    s.FilePath,
		FileURL:     s.FileURL,
		SubmittedAt: null.TimeFrom(s.SubmittedAt),
		Feedback:    null.StringFromPtr(s.Feedback),
		GradedAt:    null.NewTime(s.GradedAt, !s.GradedAt.IsZero()),
		GradedBy:    null.NewString(s.GradedBy, s.GradedBy != ""),
	}
	if s.Grade != nil {
		row.Grade = null.IntFrom(*s.Grade)
	}
	if s.Rubric != nil {
		data, err := json.Marshal(s.Rubric)
		if err != nil {
			return submissionRow{}, errors.Wrap(err, "encoding rubric")
		}
		row.Rubric = types.NullJSONText{JSONText: data, Valid: true}
	}
	return row, nil
}

func (r submissionRow) toSubmission() (submission.Submission, error) {
	s := submission.Submission{
		ID:          r.ID,
		TaskID:      r.TaskID,
		StudentID:   r.StudentID,
		FileName:    r.FileName,
		FilePath:    r.FilePath,
		FileURL:     r.FileURL,
		SubmittedAt: r.SubmittedAt.Time.UTC(),
		Feedback:    r.Feedback.Ptr(),
		GradedBy:    r.GradedBy.String,
	}
	if r.Grade.Valid {
		grade := r.Grade.Int
		s.Grade = &grade
	}
	if r.GradedAt.Valid {
		s.GradedAt = r.GradedAt.Time.UTC()
	}
	if r.Rubric.Valid {
		var rubric submission.Rubric
		if err := r.Rubric.Unmarshal(&rubric); err != nil {
			return submission.Submission{}, errors.Wrap(err, "decoding rubric")
		}
		s.Rubric = &rubric
	}
	return s, nil
}

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil)

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db}
}

// UpsertSubmission keeps a single row per (task, student): a resubmission replaces the file and clears the grade.
func (repo *submissionRepository) UpsertSubmission(ctx context.Context, s submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	row, err := newSubmissionRow(s)
	if err != nil {
		return submission.Submission{}, err
	}
	q := `INSERT INTO submissions (id, task_id, student_id, file_name, file_path, file_url, submitted_at)
		VALUES (:id, :task_id, :student_id, :file_name, :file_path, :file_url, :submitted_at)
		ON CONFLICT (task_id, student_id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			file_path = EXCLUDED.file_path,
			file_url = EXCLUDED.file_url,
			submitted_at = EXCLUDED.submitted_at,
			grade = NULL, feedback = NULL, rubric = NULL, graded_at = NULL, graded_by = NULL
		RETURNING ` + submissionColumns

	ext := repo.db.ext(exec)
	q, args, err := sqlx.Named(q, row)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "building submission upsert")
	}
	var saved submissionRow
	if err = sqlx.GetContext(ctx, ext, &saved, repo.db.db.Rebind(q), args...); err != nil {
		return submission.Submission{}, errors.Wrap(err, "upserting submission")
	}
	return saved.toSubmission()
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, filter submission.GetFilter, exec ...core.DBExecutor) (submission.Submission, error) {
	w := &where{}
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return submission.Submission{}, submission.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.TaskID != "" && filter.StudentID != "":
		if !isUUID(filter.TaskID) || !isUUID(filter.StudentID) {
			return submission.Submission{}, submission.ErrNotFound
		}
		w.add("task_id = ?", filter.TaskID)
		w.add("student_id = ?", filter.StudentID)
	default:
		return submission.Submission{}, submission.ErrNotFound
	}

	var row submissionRow
	q := repo.db.db.Rebind("SELECT " + submissionColumns + " FROM submissions" + w.String())
	if err := sqlx.GetContext(ctx, repo.db.ext(exec), &row, q, w.args...); err != nil {
		if isNoRows(err) {
			return submission.Submission{}, submission.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "selecting submission")
	}
	return row.toSubmission()
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter submission.QueryFilter, exec ...core.DBExecutor) ([]submission.Submission, error) {
	w := &where{}
	if filter.TaskID != "" {
		w.add("task_id = ?", filter.TaskID)
	}
	if len(filter.TaskIDs) > 0 {
		w.add("task_id IN (?)", filter.TaskIDs)
	}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	q, args, err := repo.db.in("SELECT "+submissionColumns+" FROM submissions"+w.String()+" ORDER BY submitted_at DESC", w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "building submissions query")
	}

	var rows []submissionRow
	if err = sqlx.SelectContext(ctx, repo.db.ext(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, r := range rows {
		s, err := r.toSubmission()
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (repo *submissionRepository) UpdateGrade(ctx context.Context, s submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	row, err := newSubmissionRow(s)
	if err != nil {
		return submission.Submission{}, err
	}
	q := `UPDATE submissions SET grade = :grade, feedback = :feedback, rubric = :rubric, graded_at = :graded_at,
		graded_by = :graded_by WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db.ext(exec), q, row)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "updating grade")
	}
	if n, err := rowsAffected(res); err != nil {
		return submission.Submission{}, err
	} else if n == 0 {
		return submission.Submission{}, submission.ErrNotFound
	}
	return s, nil
}
