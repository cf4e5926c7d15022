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

	echoapi "github.com/trezcool/masomo-fees/apps/api/echo"
	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	logsvc "github.com/trezcool/masomo-fees/services/logger"
	"github.com/trezcool/masomo-fees/services/scheduler"
	"github.com/trezcool/masomo-fees/storage/database"
	dummydb "github.com/trezcool/masomo-fees/storage/database/dummy"
	gormrepos "github.com/trezcool/masomo-fees/storage/database/gorm"
	sqlxrepos "github.com/trezcool/masomo-fees/storage/database/sqlx"
)

const (
	DriverSQLX   = "sqlx"
	DriverGORM   = "gorm"
	DriverMemory = "memory"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// DBCloser releases the database connections, if any.
	DBCloser func() error

	// Repositories are the fee stores backed by the configured database driver.
	Repositories struct {
		dig.Out
		Students fee.StudentRepository
		FeeHeads fee.FeeHeadRepository
		Challans fee.ChallanRepository
		Closer   DBCloser
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	logger := loggerParam.Logger

	if conf.Database.Driver == DriverMemory {
		db, err := dummydb.Open()
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening in-memory database: %v", err), err)
		}
		return Repositories{
			Students: dummydb.NewStudentRepository(db),
			FeeHeads: dummydb.NewFeeHeadRepository(db),
			Challans: dummydb.NewChallanRepository(db),
			Closer:   func() error { return nil },
		}
	}

	db, err := database.Setup(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	switch conf.Database.Driver {
	case DriverGORM:
		gdb, err := gormrepos.Open(db, conf.Debug)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening gorm: %v", err), err)
		}
		return Repositories{
			Students: gormrepos.NewStudentRepository(gdb),
			FeeHeads: gormrepos.NewFeeHeadRepository(gdb),
			Challans: gormrepos.NewChallanRepository(gdb),
			Closer:   db.Close,
		}
	case DriverSQLX:
		xdb := sqlx.NewDb(db, conf.Database.Engine)
		return Repositories{
			Students: sqlxrepos.NewStudentRepository(xdb),
			FeeHeads: sqlxrepos.NewFeeHeadRepository(xdb),
			Challans: sqlxrepos.NewChallanRepository(xdb),
			Closer:   xdb.Close,
		}
	default:
		err = errors.Errorf("unknown database driver %q", conf.Database.Driver)
		logger.Fatal(err.Error(), err)
		return Repositories{}
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator() *validator.Validate {
	return validator.New()
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	feeSvc fee.Service,
	validate *validator.Validate,
	translator ut.Translator,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		FeeSvc:     feeSvc,
		Validate:   validate,
		Translator: translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(fee.NewService))
	must(c.Provide(newServer))
	must(c.Provide(scheduler.NewBilling))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
