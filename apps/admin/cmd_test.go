package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
	emailsvc "github.com/trezcool/masomo-fees/services/email"
	dummydb "github.com/trezcool/masomo-fees/storage/database/dummy"
	testutil "github.com/trezcool/masomo-fees/tests"
)

type testEnv struct {
	cli      *commandLine
	out      *bytes.Buffer
	students fee.StudentRepository
	feeHeads fee.FeeHeadRepository
	challans fee.ChallanRepository
}

func setup(t *testing.T, stdin string) testEnv {
	t.Helper()

	conf := testutil.Config()
	conf.Billing.NotifyGuardians = false
	logger := testutil.Logger(conf)
	validate, translator := testutil.Validator()

	db, err := dummydb.Open()
	require.NoError(t, err)
	env := testEnv{
		out:      new(bytes.Buffer),
		students: dummydb.NewStudentRepository(db),
		feeHeads: dummydb.NewFeeHeadRepository(db),
		challans: dummydb.NewChallanRepository(db),
	}
	env.cli = &commandLine{
		feeSvc: fee.NewService(env.students, env.feeHeads, env.challans,
			emailsvc.NewConsoleServiceMock(conf, logger), conf, logger, validate, translator),
		in:  strings.NewReader(stdin),
		out: env.out,
	}
	return env
}

func mockTerminal(t *testing.T, interactive bool) {
	orig := isTerminalFunc
	isTerminalFunc = func(int) bool { return interactive }
	t.Cleanup(func() { isTerminalFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	env := setup(t, "")
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "addstudent: no args", args: []string{"addstudent"}, wantErr: errHelp},
		{name: "generate: no school", args: []string{"generate", "-month", "March"}, wantErr: errHelp},
		{name: "generate: unknown flag", args: []string{"generate", "-lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t, "")

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if dir != migrationsDir {
			return fmt.Errorf("unexpected dir %q", dir)
		}
		if _, err := fs.Stat(fsys, dir+"/00001_create_fee_tables.sql"); err != nil {
			return err
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down-to", args: []string{"migrate", "down-to", "0"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "discounts", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_addStudent(t *testing.T) {
	env := setup(t, "")

	tests := []cliTest{
		{name: "bad balance", args: []string{"addstudent", "-school", "s1", "-name", "Amina", "-balance", "lol"}, wantErrStr: "invalid balance \"lol\""},
		{name: "bad fee entry", args: []string{"addstudent", "-school", "s1", "-name", "Amina", "-fee", "tuition"}, wantErr: errHelp},
		{
			name: "added",
			args: []string{"addstudent", "-id", "std-1", "-school", "s1", "-name", " Amina ", "-balance", "1000",
				"-email", "Guardian@Test.cd", "-fee", "tuition=5000", "-fee", "transport=500"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	t.Run("invalid status", func(t *testing.T) {
		err := env.cli.run([]string{"admin", "addstudent", "-school", "s1", "-name", "Amina", "-status", "Gone"})
		assert.True(t, core.IsValidation(err), "%v", err)
	})

	std, err := env.students.GetStudent(context.Background(), "s1", "std-1")
	require.NoError(t, err)
	assert.Equal(t, "Amina", std.Name)
	assert.Equal(t, fee.StudentActive, std.Status)
	assert.Equal(t, "guardian@test.cd", std.GuardianEmail)
	assert.True(t, std.OpeningBalance.Equal(testutil.Amount("1000")))
	require.Len(t, std.FeeStructure, 2)
	assert.Equal(t, "transport", std.FeeStructure[1].FeeHeadID)
}

func Test_commandLine_generate(t *testing.T) {
	args := []string{"admin", "generate", "-school", "s1", "-month", "March", "-year", "2024", "-feehead", "exam=250"}

	seed := func(t *testing.T, env testEnv) {
		testutil.CreateFeeHead(t, env.feeHeads, "tuition", "s1", "Tuition", "5000")
		testutil.CreateFeeHead(t, env.feeHeads, "exam", "s1", "Exam", "300")
		testutil.CreateStudent(t, env.students, "std-1", "s1", "Amina", fee.StudentActive, "0",
			fee.FeeStructureEntry{FeeHeadID: "tuition", Amount: testutil.Amount("5000")})
		testutil.CreateStudent(t, env.students, "std-2", "s1", "Baraka", fee.StudentLeft, "0")
	}
	count := func(t *testing.T, env testEnv) []fee.Challan {
		challans, err := env.challans.QueryChallans(context.Background(), fee.ChallanFilter{SchoolID: "s1"}, nil)
		require.NoError(t, err)
		return challans
	}

	t.Run("non-interactive", func(t *testing.T) {
		mockTerminal(t, false)
		env := setup(t, "")
		seed(t, env)

		require.NoError(t, env.cli.run(args))
		challans := count(t, env)
		require.Len(t, challans, 1)
		assert.Equal(t, "std-1", challans[0].StudentID)
		assert.True(t, challans[0].TotalAmount.Equal(testutil.Amount("5250")), challans[0].TotalAmount.String())
		assert.Contains(t, env.out.String(), "created: 1, skipped: 0")

		require.NoError(t, env.cli.run(args))
		assert.Len(t, count(t, env), 1)
		assert.Contains(t, env.out.String(), "created: 0, skipped: 1")
	})
	t.Run("declined", func(t *testing.T) {
		mockTerminal(t, true)
		env := setup(t, "n\n")
		seed(t, env)

		assert.Equal(t, errAborted, env.cli.run(args))
		assert.Empty(t, count(t, env))
	})
	t.Run("confirmed", func(t *testing.T) {
		mockTerminal(t, true)
		env := setup(t, "yes\n")
		seed(t, env)

		require.NoError(t, env.cli.run(args))
		assert.Len(t, count(t, env), 1)
	})
	t.Run("-yes skips the prompt", func(t *testing.T) {
		mockTerminal(t, true)
		env := setup(t, "")
		seed(t, env)

		require.NoError(t, env.cli.run(append(args, "-yes")))
		assert.Len(t, count(t, env), 1)
		assert.NotContains(t, env.out.String(), "[y/N]")
	})
	t.Run("invalid month", func(t *testing.T) {
		mockTerminal(t, false)
		env := setup(t, "")

		err := env.cli.run([]string{"admin", "generate", "-school", "s1", "-month", "Marc", "-year", "2024"})
		assert.True(t, core.IsValidation(err), "%v", err)
	})
}
