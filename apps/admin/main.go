package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/outbox"
	appfs "github.com/trezcool/trackit/fs"
	emailsvc "github.com/trezcool/trackit/services/email"
	logsvc "github.com/trezcool/trackit/services/logger"
	notifysvc "github.com/trezcool/trackit/services/notify"
	"github.com/trezcool/trackit/storage/database"
	sqlxrepos "github.com/trezcool/trackit/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	sqlDB, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	db := sqlxrepos.NewDB(sqlDB)

	// set up the outbox relay
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(appfs.FS, "templates/email", conf, logger)
	dispatcher, closeDispatcher := notifysvc.FromConfig(conf, notifysvc.NewEmailDispatcher(mailSvc))

	// password policy for imported students
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	account.LoadCommonPasswords(appfs.FS, "assets/common-passwords.txt.gz", logger)

	// start CLI
	cli := commandLine{
		db:         sqlDB.DB,
		accRepo:    sqlxrepos.NewAccountRepository(db),
		relay:      outbox.NewRelay(sqlxrepos.NewOutboxRepository(db), dispatcher, conf.Outbox, logger),
		validate:   validate,
		translator: translator,
	}
	err = cli.run(os.Args)

	_ = closeDispatcher()
	_ = sqlDB.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}
