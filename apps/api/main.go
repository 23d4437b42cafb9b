package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/trackit/apps/api/echo"
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
	"github.com/trezcool/trackit/storage/database"
	inmemdb "github.com/trezcool/trackit/storage/database/inmem"
	sqlxrepos "github.com/trezcool/trackit/storage/database/sqlx"
)

// repositories groups the storage layer the services are built on.
type repositories struct {
	db          core.Transactor
	accounts    account.Repository
	groups      group.Repository
	tasks       task.Repository
	submissions submission.Repository
	notices     notice.Repository
	messages    chat.Repository
	outbox      outbox.Repository
	close       func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repos, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up collaborators
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	s3Client, err := storagesvc.NewS3Client(ctx, conf.Storage)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	fileStorage := storagesvc.NewS3Storage(s3Client, conf.Storage, logger)
	if err = fileStorage.EnsureBucket(ctx); err != nil {
		logger.Error(fmt.Sprintf("ensuring bucket %q: %v", conf.Storage.Bucket, err), err)
	}

	rdb := realtimesvc.NewRedisClient(conf.Redis)
	defer func() { _ = rdb.Close() }()
	broker := realtimesvc.NewRedisBroker(rdb, logger)

	invitations := notifysvc.NewEmailDispatcher(mailSvc)
	dispatcher, closeDispatcher := notifysvc.FromConfig(conf, invitations)
	defer func() {
		if err := closeDispatcher(); err != nil {
			logger.Error(fmt.Sprintf("closing dispatcher: %v", err), err)
		}
	}()

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()

	outboxSvc := outbox.NewService(repos.outbox)
	accSvc := account.NewService(repos.accounts, mailSvc, conf, logger)
	groupSvc := group.NewService(repos.db, repos.groups, repos.accounts, outboxSvc, conf, logger)
	taskSvc := task.NewService(repos.tasks, repos.groups, logger)
	subSvc := submission.NewService(repos.submissions, repos.tasks, repos.groups, repos.accounts, fileStorage, logger)
	noticeSvc := notice.NewService(repos.notices, repos.groups, validate, translator, logger)
	chatSvc := chat.NewService(repos.messages, repos.groups, broker, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	core.ParseEmailTemplates(appfs.FS, "templates/email", conf, logger)

	account.LoadCommonPasswords(appfs.FS, "assets/common-passwords.txt.gz", logger)

	// =========================================================================
	// Start Outbox Relay

	relay := outbox.NewRelay(repos.outbox, dispatcher, conf.Outbox, logger)
	go relay.Run(ctx)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("dispatcher").Set(conf.Outbox.Dispatcher)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			Validate:      validate,
			Translator:    translator,
			AccountSvc:    accSvc,
			GroupSvc:      groupSvc,
			TaskSvc:       taskSvc,
			SubmissionSvc: subSvc,
			NoticeSvc:     noticeSvc,
			ChatSvc:       chatSvc,
			OutboxSvc:     outboxSvc,
			Invitations:   invitations,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		cancel()
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		cancel() // stops the relay and open message streams

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpDB opens the configured database. The "memory" engine keeps everything in process and is meant for demos.
func setUpDB(conf *core.Config) (*repositories, error) {
	if conf.Database.Engine == "memory" {
		db := inmemdb.Open()
		return &repositories{
			db:          db,
			accounts:    inmemdb.NewAccountRepository(db),
			groups:      inmemdb.NewGroupRepository(db),
			tasks:       inmemdb.NewTaskRepository(db),
			submissions: inmemdb.NewSubmissionRepository(db),
			notices:     inmemdb.NewNoticeRepository(db),
			messages:    inmemdb.NewMessageRepository(db),
			outbox:      inmemdb.NewOutboxRepository(db),
			close:       func() error { return nil },
		}, nil
	}

	if err := database.Provision(context.Background(), conf); err != nil {
		return nil, err
	}

	sqlDB, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(sqlDB.DB, "up"); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db := sqlxrepos.NewDB(sqlDB)
	return &repositories{
		db:          db,
		accounts:    sqlxrepos.NewAccountRepository(db),
		groups:      sqlxrepos.NewGroupRepository(db),
		tasks:       sqlxrepos.NewTaskRepository(db),
		submissions: sqlxrepos.NewSubmissionRepository(db),
		notices:     sqlxrepos.NewNoticeRepository(db),
		messages:    sqlxrepos.NewMessageRepository(db),
		outbox:      sqlxrepos.NewOutboxRepository(db),
		close:       sqlDB.Close,
	}, nil
}
