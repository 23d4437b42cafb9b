package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/submission"
	"github.com/trezcool/trackit/core/task"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil)

func NewSubmissionRepository(db *DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) UpsertSubmission(_ context.Context, s submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.tables.tasks[s.TaskID]; !ok {
		return submission.Submission{}, task.ErrNotFound
	}
	for id, existing := range repo.db.tables.submissions {
		if existing.TaskID == s.TaskID && existing.StudentID == s.StudentID {
			existing.FileName = s.FileName
			existing.FilePath = s.FilePath
			existing.FileURL = s.FileURL
			existing.SubmittedAt = s.SubmittedAt
			existing.Grade = nil
			existing.Feedback = nil
			existing.Rubric = nil
			existing.GradedAt = time.Time{}
			existing.GradedBy = ""
			repo.db.tables.submissions[id] = existing
			return copySubmission(existing), nil
		}
	}
	s.Grade, s.Feedback, s.Rubric, s.GradedBy = nil, nil, nil, ""
	repo.db.tables.submissions[s.ID] = copySubmission(s)
	return s, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, filter submission.GetFilter, _ ...core.DBExecutor) (submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if s, ok := repo.db.tables.submissions[filter.ID]; ok {
			return copySubmission(s), nil
		}
	case filter.TaskID != "" && filter.StudentID != "":
		for _, s := range repo.db.tables.submissions {
			if s.TaskID == filter.TaskID && s.StudentID == filter.StudentID {
				return copySubmission(s), nil
			}
		}
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter submission.QueryFilter, _ ...core.DBExecutor) ([]submission.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, s := range repo.db.tables.submissions {
		if filter.TaskID != "" && s.TaskID != filter.TaskID {
			continue
		}
		if len(filter.TaskIDs) > 0 && !contains(filter.TaskIDs, s.TaskID) {
			continue
		}
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			continue
		}
		subs = append(subs, copySubmission(s))
	}
	sort.Slice(subs, func(i, j int) bool {
		if c := compareTimes(subs[i].SubmittedAt, subs[j].SubmittedAt); c != 0 {
			return c > 0
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (repo *submissionRepository) UpdateGrade(_ context.Context, s submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	defer repo.db.lockWrite(exec)()

	orig, ok := repo.db.tables.submissions[s.ID]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	orig.Grade = s.Grade
	orig.Feedback = s.Feedback
	orig.Rubric = s.Rubric
	orig.GradedAt = s.GradedAt
	orig.GradedBy = s.GradedBy
	repo.db.tables.submissions[s.ID] = copySubmission(orig)
	return copySubmission(orig), nil
}
