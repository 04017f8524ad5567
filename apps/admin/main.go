// Command admin validates and submits funding window forms from the command line,
// lists the submission journal and runs database migrations.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
	appfs "github.com/trezcool/seta/fs"
	emailsvc "github.com/trezcool/seta/services/email"
	logsvc "github.com/trezcool/seta/services/logger"
	"github.com/trezcool/seta/services/setaapi"
	"github.com/trezcool/seta/storage/database"
	sqlxrepos "github.com/trezcool/seta/storage/database/sqlx"
)

const dbPingAttempts = 3

var logger core.Logger

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger = logsvc.NewRollbarLogger(stdLogger, conf)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(database.Ping(db, dbPingAttempts))

	code := 0
	if err = newCommandLine(conf, db).run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		code = 1
	}
	errAndDie(db.Close())
	os.Exit(code)
}

func newCommandLine(conf *core.Config, db *sqlx.DB) *commandLine {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	var mailSvc core.EmailService
	if conf.ReceiptsEnabled {
		core.ParseEmailTemplates(appfs.FS, "templates/email", conf.FrontendBaseURL, conf.TestMode, logger)
		if conf.Debug {
			mailSvc = emailsvc.NewConsoleService(conf, logger)
		} else {
			mailSvc = emailsvc.NewSendgridService(conf, logger)
		}
	}

	return &commandLine{
		conf: conf,
		db:   db,
		svc: fundingwindow.NewService(
			setaapi.NewClient(conf),
			sqlxrepos.NewSubmissionRepository(db),
			mailSvc,
			logger,
			validate,
			translator,
		),
		stdout: os.Stdout,
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
