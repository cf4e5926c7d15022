package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/trezcool/masomo-fees/core/fee"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	db     *sql.DB
	feeSvc fee.Service
	in     io.Reader
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Fprintln(cli.out, "  addstudent -school ID -name NAME [-id ID] [-class ID] [-status S] [-balance N] [-email E] [-fee HEAD=AMOUNT ...] - add or replace a student")
	fmt.Fprintln(cli.out, "  generate -school ID -month MONTH -year YEAR [-feehead HEAD[=AMOUNT] ...] [-yes] - generate the monthly challans")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addstudent":
		return cli.addStudent(args[2:])
	case "generate":
		return cli.generate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// confirm asks a yes/no question when stdin is a terminal; non-interactive runs are confirmed.
func (cli *commandLine) confirm(question string) (bool, error) {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return true, nil
	}
	fmt.Fprintf(cli.out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// splitAssignment parses "key=value"; value is empty when there is no "=".
func splitAssignment(s string) (string, string) {
	parts := strings.SplitN(s, "=", 2)
	key := strings.TrimSpace(parts[0])
	if len(parts) == 1 {
		return key, ""
	}
	return key, strings.TrimSpace(parts[1])
}

// feeHeadFlags collects repeated `-feehead HEAD[=AMOUNT]` flags.
type feeHeadFlags []fee.SelectedFeeHead

func (f *feeHeadFlags) String() string { return fmt.Sprint(len(*f), " fee heads") }

func (f *feeHeadFlags) Set(s string) error {
	id, amt := splitAssignment(s)
	if id == "" {
		return errors.New("fee head ID required")
	}
	sel := fee.SelectedFeeHead{FeeHeadID: id}
	if amt != "" {
		amount, err := decimal.NewFromString(amt)
		if err != nil {
			return fmt.Errorf("invalid amount %q", amt)
		}
		sel.Amount = &amount
	}
	*f = append(*f, sel)
	return nil
}

// structureFlags collects repeated `-fee HEAD=AMOUNT` flags.
type structureFlags []fee.FeeStructureEntry

func (f *structureFlags) String() string { return fmt.Sprint(len(*f), " entries") }

func (f *structureFlags) Set(s string) error {
	id, amt := splitAssignment(s)
	if id == "" || amt == "" {
		return errors.New("must be of form HEAD=AMOUNT")
	}
	amount, err := decimal.NewFromString(amt)
	if err != nil {
		return fmt.Errorf("invalid amount %q", amt)
	}
	*f = append(*f, fee.FeeStructureEntry{FeeHeadID: id, Amount: amount})
	return nil
}
