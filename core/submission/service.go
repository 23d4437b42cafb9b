package submission

import (
	"context"
	"fmt"
	"io"
	"math"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/group"
	"github.com/trezcool/trackit/core/task"
)

var (
	// errors
	ErrNotFound = core.NewError(core.KindNotFound, "submission not found")
)

type (
	Repository interface {
		// UpsertSubmission inserts s or replaces the submission of the same (task, student) pair.
		UpsertSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissions returns submissions newest first.
		QuerySubmissions(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Submission, error)
		// UpdateGrade stores grade, feedback, rubric and grading metadata of s.
		UpdateGrade(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
	}

	// FileStorage is the object storage collaborator.
	FileStorage interface {
		// Upload stores body at path, overwriting any existing object.
		Upload(ctx context.Context, path string, body io.Reader, size int64, contentType string) error
		// Delete removes the object at path; a missing object is not an error.
		Delete(ctx context.Context, path string) error
		PublicURL(path string) string
	}

	Service struct {
		repo      Repository
		taskRepo  task.Repository
		groupRepo group.Repository
		accRepo   account.Repository
		storage   FileStorage
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	taskRepo task.Repository,
	groupRepo group.Repository,
	accRepo account.Repository,
	storage FileStorage,
	logger core.Logger,
) *Service {
	return &Service{
		repo:      repo,
		taskRepo:  taskRepo,
		groupRepo: groupRepo,
		accRepo:   accRepo,
		storage:   storage,
		logger:    logger,
	}
}

// cleanFileName keeps the base name of an uploaded file.
func cleanFileName(name string) string {
	name = strings.ReplaceAll(core.CleanString(name), "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// Submit uploads the signed-in student's work for a task of their group.
// The latest submission wins: a previous submission of the same task is replaced and its grade cleared.
func (svc *Service) Submit(ctx context.Context, taskID string, f File) (Submission, error) {
	student, err := account.Require(ctx, account.RoleStudent)
	if err != nil {
		return Submission{}, err
	}
	fileName := cleanFileName(f.Name)
	if fileName == "" || f.Body == nil {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "a file is required"})
	}

	t, err := svc.taskRepo.GetTask(ctx, taskID)
	if err != nil {
		return Submission{}, err
	}
	_, access, err := group.ResolveAccess(ctx, svc.groupRepo, t.GroupID, student)
	if err != nil {
		return Submission{}, err
	}
	if access != group.AccessMember {
		return Submission{}, core.ErrForbidden
	}

	prev, err := svc.repo.GetSubmission(ctx, GetFilter{TaskID: t.ID, StudentID: student.ID})
	if err != nil && errors.Cause(err) != ErrNotFound {
		return Submission{}, errors.Wrap(err, "finding previous submission")
	}

	filePath := path.Join("submissions", t.ID, student.ID, fileName)
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err = svc.storage.Upload(ctx, filePath, f.Body, f.Size, contentType); err != nil {
		return Submission{}, core.Upstream(err, "uploading submission")
	}

	s := Submission{
		ID:          uuid.New().String(),
		TaskID:      t.ID,
		StudentID:   student.ID,
		FileName:    fileName,
		FilePath:    filePath,
		FileURL:     svc.storage.PublicURL(filePath),
		SubmittedAt: core.NowFunc(),
	}
	if s, err = svc.repo.UpsertSubmission(ctx, s); err != nil {
		return Submission{}, errors.Wrap(err, "saving submission")
	}

	// the previous file is not referenced anymore
	if prev.FilePath != "" && prev.FilePath != filePath {
		if err = svc.storage.Delete(ctx, prev.FilePath); err != nil {
			svc.logger.Error(fmt.Sprintf("deleting replaced submission file %s: %v", prev.FilePath, err), err, student)
		}
	}
	return s, nil
}

// ListByTask lists a task's submissions with their students, for the group's mentor.
func (svc *Service) ListByTask(ctx context.Context, taskID string) ([]Submission, error) {
	t, err := svc.taskRepo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if _, _, _, err = group.Authorize(ctx, svc.groupRepo, t.GroupID, group.Access.CanManage); err != nil {
		return nil, err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, QueryFilter{TaskID: t.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return svc.withStudents(ctx, subs)
}

// ListMine lists the signed-in student's submissions.
func (svc *Service) ListMine(ctx context.Context) ([]Submission, error) {
	student, err := account.Require(ctx, account.RoleStudent)
	if err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissions(ctx, QueryFilter{StudentID: student.ID})
}

// Get returns a submission to its student or to the mentor managing its task.
func (svc *Service) Get(ctx context.Context, id string) (Submission, error) {
	acc, err := account.Require(ctx)
	if err != nil {
		return Submission{}, err
	}
	s, err := svc.repo.GetSubmission(ctx, GetFilter{ID: id})
	if err != nil {
		return Submission{}, err
	}
	if acc.Role == account.RoleStudent && s.StudentID == acc.ID {
		return s, nil
	}
	t, err := svc.taskRepo.GetTask(ctx, s.TaskID)
	if err != nil {
		return Submission{}, err
	}
	if _, _, _, err = group.Authorize(ctx, svc.groupRepo, t.GroupID, group.Access.CanManage); err != nil {
		return Submission{}, err
	}
	return s, nil
}

func (svc *Service) withStudents(ctx context.Context, subs []Submission) ([]Submission, error) {
	if len(subs) == 0 {
		return subs, nil
	}
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.StudentID)
	}
	accs, err := svc.accRepo.QueryAccounts(ctx, &account.QueryFilter{IDs: ids}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	byID := make(map[string]account.Account, len(accs))
	for _, acc := range accs {
		byID[acc.ID] = acc
	}
	for i := range subs {
		if acc, ok := byID[subs[i].StudentID]; ok {
			subs[i].StudentName = acc.Name
			subs[i].StudentEmail = acc.Email
		}
	}
	return subs, nil
}

// Progress is the rounded percentage of the group's tasks the signed-in student has submitted work for.
// A group without tasks yields 0.
func (svc *Service) Progress(ctx context.Context, groupID string) (int, error) {
	student, err := account.Require(ctx, account.RoleStudent)
	if err != nil {
		return 0, err
	}
	if _, _, _, err = group.Authorize(ctx, svc.groupRepo, groupID, group.Access.CanView); err != nil {
		return 0, err
	}

	tasks, err := svc.taskRepo.QueryTasks(ctx, task.QueryFilter{GroupID: groupID})
	if err != nil {
		return 0, errors.Wrap(err, "querying tasks")
	}
	if len(tasks) == 0 {
		return 0, nil
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	subs, err := svc.repo.QuerySubmissions(ctx, QueryFilter{TaskIDs: ids, StudentID: student.ID})
	if err != nil {
		return 0, errors.Wrap(err, "querying submissions")
	}
	return progress(len(tasks), subs), nil
}

func progress(taskCount int, subs []Submission) int {
	if taskCount == 0 {
		return 0
	}
	submitted := make(map[string]struct{}, len(subs))
	for _, s := range subs {
		submitted[s.TaskID] = struct{}{}
	}
	return int(math.Round(float64(len(submitted)) * 100 / float64(taskCount)))
}

func (svc *Service) logGrade(s Submission, by account.Account) {
	if svc.logger != nil {
		svc.logger.Info(fmt.Sprintf("submission %s graded %d", s.ID, *s.Grade), by)
	}
}
