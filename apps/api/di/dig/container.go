package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/seta/apps/api/echo"
	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
	"github.com/trezcool/seta/core/student"
	emailsvc "github.com/trezcool/seta/services/email"
	logsvc "github.com/trezcool/seta/services/logger"
	"github.com/trezcool/seta/services/setaapi"
	"github.com/trezcool/seta/storage/database"
	sqlxrepos "github.com/trezcool/seta/storage/database/sqlx"
)

const dbPingAttempts = 5

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(db, dbPingAttempts); err != nil {
			return nil, err
		}
		if err = database.Migrate(db, conf.Database.Engine); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// newEmailService returns the receipt mailer, nil when receipts are disabled.
func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if !conf.ReceiptsEnabled {
		return nil
	}
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator() *validator.Validate {
	return validator.New()
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(setaapi.NewClient, dig.As(new(fundingwindow.API), new(student.Source))))
	must(c.Provide(sqlxrepos.NewSubmissionRepository, dig.As(new(fundingwindow.Repository))))
	must(c.Provide(newValidator))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(fundingwindow.NewService, dig.As(new(fundingwindow.ServiceInterface))))
	must(c.Provide(student.NewService, dig.As(new(student.ServiceInterface))))
	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

type serverDepsParam struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	FormSvc    fundingwindow.ServiceInterface
	StudentSvc student.ServiceInterface
	Validate   *validator.Validate
	Translator ut.Translator
}

func newServerDeps(p serverDepsParam) echoapi.ServerDeps {
	return echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		FormSvc:    p.FormSvc,
		StudentSvc: p.StudentSvc,
		Validate:   p.Validate,
		Translator: p.Translator,
	}
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
