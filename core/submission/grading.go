package submission

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/group"
)

const DefaultMaxGrade = 100

// ValidateGrade checks that grade is within [0, max].
func ValidateGrade(grade *int, max int) error {
	if max <= 0 {
		max = DefaultMaxGrade
	}
	if grade == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "grade", Error: "this field is required"})
	}
	if *grade < 0 || *grade > max {
		msg := fmt.Sprintf("grade must be between 0 and %d", max)
		return core.NewValidationError(errors.New(msg), core.FieldError{Field: "grade", Error: msg})
	}
	return nil
}

// Grade stores the grade, feedback and rubric of a submission. Only the mentor managing the task's group may
// grade; a later grade overwrites the previous one.
func (svc *Service) Grade(ctx context.Context, id string, gr GradeRequest) (Submission, error) {
	if err := ValidateGrade(gr.Grade, gr.MaxGrade); err != nil {
		return Submission{}, err
	}

	s, err := svc.repo.GetSubmission(ctx, GetFilter{ID: id})
	if err != nil {
		return Submission{}, err
	}
	t, err := svc.taskRepo.GetTask(ctx, s.TaskID)
	if err != nil {
		return Submission{}, err
	}
	_, mentor, _, err := group.Authorize(ctx, svc.groupRepo, t.GroupID, group.Access.CanManage)
	if err != nil {
		return Submission{}, err
	}

	grade := *gr.Grade
	feedback := core.CleanString(gr.Feedback)
	s.Grade = &grade
	s.Feedback = &feedback
	s.Rubric = gr.Rubric
	s.GradedAt = core.NowFunc()
	s.GradedBy = mentor.ID
	if s, err = svc.repo.UpdateGrade(ctx, s); err != nil {
		return Submission{}, errors.Wrap(err, "grading submission")
	}
	svc.logGrade(s, mentor)
	return s, nil
}
