package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/chat"
	"github.com/trezcool/trackit/core/group"
	"github.com/trezcool/trackit/core/notice"
	"github.com/trezcool/trackit/core/outbox"
	"github.com/trezcool/trackit/core/submission"
	"github.com/trezcool/trackit/core/task"
	appfs "github.com/trezcool/trackit/fs"
	emailsvc "github.com/trezcool/trackit/services/email"
	logsvc "github.com/trezcool/trackit/services/logger"
	notifysvc "github.com/trezcool/trackit/services/notify"
	realtimesvc "github.com/trezcool/trackit/services/realtime"
	storagesvc "github.com/trezcool/trackit/services/storage"
	inmemdb "github.com/trezcool/trackit/storage/database/inmem"
)

const StorageBaseURL = "http://storage.test/trackit"

// Env wires every service on top of the in-memory database and collaborators.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	DB         *inmemdb.DB

	AccountRepo    account.Repository
	GroupRepo      group.Repository
	TaskRepo       task.Repository
	SubmissionRepo submission.Repository
	NoticeRepo     notice.Repository
	MessageRepo    chat.Repository
	OutboxRepo     outbox.Repository

	MailSvc     core.EmailService
	Storage     *storagesvc.MemoryStorage
	Broker      *realtimesvc.MemoryBroker
	Invitations *notifysvc.EmailDispatcher

	AccountSvc    *account.Service
	GroupSvc      *group.Service
	TaskSvc       *task.Service
	SubmissionSvc *submission.Service
	NoticeSvc     *notice.Service
	ChatSvc       *chat.Service
	OutboxSvc     *outbox.Service
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(ioutil.Discard, "TEST : ", log.LstdFlags), conf)
}

func NewEnv(t *testing.T) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := NewLogger(conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, "templates/email", conf, logger)
	account.LoadCommonPasswords(appfs.FS, "assets/common-passwords.txt.gz", logger)
	emailsvc.ClearSentMessages()

	db := inmemdb.Open()
	env := &Env{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		DB:         db,

		AccountRepo:    inmemdb.NewAccountRepository(db),
		GroupRepo:      inmemdb.NewGroupRepository(db),
		TaskRepo:       inmemdb.NewTaskRepository(db),
		SubmissionRepo: inmemdb.NewSubmissionRepository(db),
		NoticeRepo:     inmemdb.NewNoticeRepository(db),
		MessageRepo:    inmemdb.NewMessageRepository(db),
		OutboxRepo:     inmemdb.NewOutboxRepository(db),

		MailSvc: emailsvc.NewConsoleServiceMock(conf, logger),
		Storage: storagesvc.NewMemoryStorage(StorageBaseURL),
		Broker:  realtimesvc.NewMemoryBroker(),
	}
	env.Invitations = notifysvc.NewEmailDispatcher(env.MailSvc)

	env.OutboxSvc = outbox.NewService(env.OutboxRepo)
	env.AccountSvc = account.NewService(env.AccountRepo, env.MailSvc, conf, logger)
	env.GroupSvc = group.NewService(db, env.GroupRepo, env.AccountRepo, env.OutboxSvc, conf, logger)
	env.TaskSvc = task.NewService(env.TaskRepo, env.GroupRepo, logger)
	env.SubmissionSvc = submission.NewService(env.SubmissionRepo, env.TaskRepo, env.GroupRepo, env.AccountRepo, env.Storage, logger)
	env.NoticeSvc = notice.NewService(env.NoticeRepo, env.GroupRepo, validate, translator, logger)
	env.ChatSvc = chat.NewService(env.MessageRepo, env.GroupRepo, env.Broker, logger)
	return env
}

// Relay returns an outbox relay draining env's outbox through dispatcher.
func (env *Env) Relay(dispatcher outbox.Dispatcher) *outbox.Relay {
	return outbox.NewRelay(env.OutboxRepo, dispatcher, env.Conf.Outbox, env.Logger)
}

// SessionCtx returns a context signed in as acc.
func SessionCtx(acc account.Account) context.Context {
	now := core.NowFunc()
	return account.WithSession(context.Background(), account.NewSession(acc, now, now.Add(time.Hour)))
}

func CreateAccount(
	t *testing.T,
	repo account.Repository,
	name, email, sapID, pwd string,
	role account.Role,
	isActive bool,
	createdAt ...time.Time,
) account.Account {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	acc := account.Account{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		SAPID:     sapID,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := acc.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	acc, err := repo.CreateAccount(context.Background(), acc)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acc
}

func CreateStudent(t *testing.T, repo account.Repository, name, email string) account.Account {
	return CreateAccount(t, repo, name, email, "", "", account.RoleStudent, true)
}

func CreateMentor(t *testing.T, repo account.Repository, name, email string) account.Account {
	return CreateAccount(t, repo, name, email, "", "", account.RoleMentor, true)
}

func CreateAdmin(t *testing.T, repo account.Repository, name, email string) account.Account {
	return CreateAccount(t, repo, name, email, "", "", account.RoleAdmin, true)
}

// CreateGroup stores a group owned by mentor with the given students as members.
func CreateGroup(t *testing.T, repo group.Repository, name, semester, joinCode string, mentor account.Account, members ...account.Account) group.Group {
	t.Helper()

	now := time.Now().UTC()
	grp, err := repo.CreateGroup(context.Background(), group.Group{
		ID:        uuid.New().String(),
		Name:      name,
		Semester:  semester,
		JoinCode:  joinCode,
		CreatedBy: mentor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	for i, m := range members {
		ms := group.Membership{GroupID: grp.ID, StudentEmail: m.Email, JoinedAt: now.Add(time.Duration(i) * time.Second)}
		if err = repo.AddMembership(context.Background(), ms); err != nil {
			t.Fatalf("CreateGroup() failed: %v", err)
		}
	}
	return grp
}

func CreateTask(t *testing.T, repo task.Repository, grp group.Group, title string, status task.Status, due ...time.Time) task.Task {
	t.Helper()

	now := time.Now().UTC()
	tsk := task.Task{
		ID:        uuid.New().String(),
		GroupID:   grp.ID,
		Title:     title,
		Status:    status,
		Priority:  task.PriorityMedium,
		Labels:    []string{},
		Subtasks:  []task.Subtask{},
		CreatedBy: grp.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if len(due) > 0 {
		tsk.DueDate = due[0].UTC()
	}
	tsk, err := repo.CreateTask(context.Background(), tsk)
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	return tsk
}

func IntPtr(i int) *int       { return &i }
func StrPtr(s string) *string { return &s }
func BoolPtr(b bool) *bool    { return &b }
