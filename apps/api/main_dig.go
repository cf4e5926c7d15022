package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/masomo-fees/apps/api/di/dig"
	echoapi "github.com/trezcool/masomo-fees/apps/api/echo"
	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	"github.com/trezcool/masomo-fees/services/scheduler"
)

// api holds everything the fee API process runs.
type api struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	DBLogger   core.Logger `name:"dbLogger"`
	CloseDB    dig_container.DBCloser
	Validate   *validator.Validate
	Translator ut.Translator
	Server     *echoapi.Server
	Billing    *scheduler.Billing
}

func startWithDig() {
	c := dig_container.New()
	must(c.Invoke(func(a api) { a.run() }))
}

func (a api) run() {
	a.Logger.Info(fmt.Sprintf("Application initializing : version %q, database driver %q", a.Conf.Build, a.Conf.Database.Driver))
	defer a.Logger.Info("Application stopped")

	core.InitValidators(a.Validate, a.Translator)
	fee.InitValidators(a.Validate, a.Translator)
	core.ParseEmailTemplates(a.Conf, a.Logger)

	defer func() {
		if err := a.CloseDB(); err != nil {
			a.DBLogger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	a.startDebug()
	if a.Conf.Billing.AutoGenerate {
		defer a.startBilling()()
	}

	go a.Server.Start()
	a.waitShutdown()
}

// startDebug serves /debug/pprof (net/http/pprof) and /debug/vars (expvar) on the debug host.
func (a api) startDebug() {
	expvar.NewString("build").Set(a.Conf.Build)
	expvar.NewString("env").Set(a.Conf.Env)
	expvar.NewString("dbDriver").Set(a.Conf.Database.Driver)
	expvar.NewString("billingSchedule").Set(a.Conf.Billing.Schedule)

	go func() {
		if err := http.ListenAndServe(a.Conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			a.Logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// startBilling starts the monthly billing scheduler and returns its stop function,
// which waits for a running billing job to complete.
func (a api) startBilling() (stop func()) {
	if err := a.Billing.Start(); err != nil {
		a.Logger.Fatal(fmt.Sprintf("starting billing scheduler: %v", err), err)
	}
	return func() {
		<-a.Billing.Stop().Done()
		a.Logger.Info("Billing scheduler stopped")
	}
}

func (a api) waitShutdown() {
	select {
	case err := <-a.Server.Errors():
		a.Logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-a.Server.ShutdownSignal():
		a.Logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// outstanding requests get until the deadline to complete
		ctx, cancel := context.WithTimeout(context.Background(), a.Conf.Server.ShutdownTimeout)
		defer cancel()

		if err := a.Server.Shutdown(ctx); err != nil {
			a.Logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = a.Server.Close(); err != nil {
				a.Logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
