package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

func (cli *commandLine) generate(args []string) error {
	now := fee.NowFunc()

	cmd := cli.newFlagSet("generate")
	school := cmd.String("school", "", "The school ID.")
	month := cmd.String("month", string(fee.MonthOf(now)), "The billed month, eg. January.")
	year := cmd.Int("year", now.Year(), "The billed year.")
	yes := cmd.Bool("yes", false, "Do not ask for confirmation.")
	var heads feeHeadFlags
	cmd.Var(&heads, "feehead", "A fee head billed to every student, HEAD or HEAD=AMOUNT. Repeatable.")

	if err := cmd.Parse(args); err != nil {
		return errHelp
	}
	if *school == "" {
		cmd.Usage()
		return errHelp
	}
	period := fee.Month(core.CleanString(*month))

	if !*yes {
		ok, err := cli.confirm(fmt.Sprintf("Generate the %s %d challans of school %s?", period, *year, *school))
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	res, err := cli.feeSvc.GenerateChallansForMonth(context.Background(), *school, period, *year, heads)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s (created: %d, skipped: %d)\n", res.Message, res.Created, res.Skipped)
	return nil
}
