package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core/fee"
)

// addStudent adds a student to the directory, or replaces the one with the same -id.
func (cli *commandLine) addStudent(args []string) error {
	cmd := cli.newFlagSet("addstudent")
	id := cmd.String("id", "", "The student ID. A new one is assigned when empty.")
	school := cmd.String("school", "", "The school ID.")
	name := cmd.String("name", "", "The student's full name.")
	class := cmd.String("class", "", "The class ID.")
	status := cmd.String("status", string(fee.StudentActive), "Active, Inactive or Left.")
	balance := cmd.String("balance", "0", "The opening balance carried into the next challan.")
	email := cmd.String("email", "", "The guardian's email address.")
	var structure structureFlags
	cmd.Var(&structure, "fee", "A fee structure entry HEAD=AMOUNT. Repeatable.")

	if err := cmd.Parse(args); err != nil {
		return errHelp
	}
	if *school == "" || *name == "" {
		cmd.Usage()
		return errHelp
	}
	openingBalance, err := decimal.NewFromString(*balance)
	if err != nil {
		return fmt.Errorf("invalid balance %q", *balance)
	}

	std, err := cli.feeSvc.SaveStudent(context.Background(), fee.NewStudent{
		ID:             *id,
		SchoolID:       *school,
		ClassID:        *class,
		Name:           *name,
		Status:         fee.StudentStatus(*status),
		OpeningBalance: openingBalance,
		FeeStructure:   structure,
		GuardianEmail:  *email,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "student %s saved: %s (%s)\n", std.ID, std.Name, std.Status)
	return nil
}
