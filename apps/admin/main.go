package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	logsvc "github.com/trezcool/masomo-fees/services/logger"
	"github.com/trezcool/masomo-fees/storage/database"
	gormrepos "github.com/trezcool/masomo-fees/storage/database/gorm"
	sqlxrepos "github.com/trezcool/masomo-fees/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	students, feeHeads, challans, err := newRepositories(conf, db)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	// start CLI
	cli := commandLine{
		db:     db,
		feeSvc: fee.NewService(students, feeHeads, challans, mailSvc, conf, logger, validate, translator),
		in:     os.Stdin,
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}

// newRepositories returns the SQL stores of the configured driver; the in-memory driver is served by sqlx.
func newRepositories(conf *core.Config, db *sql.DB) (fee.StudentRepository, fee.FeeHeadRepository, fee.ChallanRepository, error) {
	if conf.Database.Driver == "gorm" {
		gdb, err := gormrepos.Open(db, conf.Debug)
		if err != nil {
			return nil, nil, nil, err
		}
		return gormrepos.NewStudentRepository(gdb), gormrepos.NewFeeHeadRepository(gdb), gormrepos.NewChallanRepository(gdb), nil
	}
	xdb := sqlx.NewDb(db, conf.Database.Engine)
	return sqlxrepos.NewStudentRepository(xdb), sqlxrepos.NewFeeHeadRepository(xdb), sqlxrepos.NewChallanRepository(xdb), nil
}
