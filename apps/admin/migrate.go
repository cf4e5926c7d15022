package main

import (
	"fmt"

	"github.com/trezcool/goose"

	"github.com/trezcool/masomo-fees/fs"
)

const migrationsDir = "migrations"

var gooseRunFunc = goose.RunFS // mockable

// migrate runs the goose command args[0] with the remaining args against the embedded fee migrations.
func (cli *commandLine) migrate(args []string) error {
	command, cmdArgs := args[0], args[1:]
	if err := gooseRunFunc(command, cli.db, appfs.FS, migrationsDir, cmdArgs...); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "migrate %s: done\n", command)
	return nil
}
