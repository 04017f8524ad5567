package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
)

func (cli *commandLine) printErrors(errs fundingwindow.ValidationErrors) {
	fields := make([]string, 0, len(errs))
	for fld := range errs {
		fields = append(fields, fld)
	}
	sort.Strings(fields)
	for _, fld := range fields {
		fmt.Fprintf(cli.stdout, "  %s: %s\n", fld, errs[fld])
	}
}

func (cli *commandLine) printWarnings(fw fundingwindow.FundingWindow) {
	for _, w := range fundingwindow.Warnings(fw) {
		fmt.Fprintf(cli.stdout, "warning: %s\n", w.Message)
	}
}

// validate checks the form file; it fails with ErrInvalidForm when any rule is broken.
func (cli *commandLine) validate(path string) error {
	store, err := loadForm(path)
	if err != nil {
		return err
	}
	fw := store.Snapshot()
	cli.printWarnings(fw)

	if errs := cli.svc.Validate(fw); !errs.IsEmpty() {
		fmt.Fprintln(cli.stdout, fundingwindow.ErrInvalidForm.Error()+":")
		cli.printErrors(errs)
		return fundingwindow.ErrInvalidForm
	}
	fmt.Fprintf(cli.stdout, "%s is valid: %d programme(s), R %s of R %s allocated\n",
		path, len(fw.Programmes), fw.TotalProgrammeBudget().StringFixed(2), budgetOf(fw))
	return nil
}

func budgetOf(fw fundingwindow.FundingWindow) string {
	if budget, ok := core.ParseNumber(fw.BudgetAllocation); ok {
		return budget.StringFixed(2)
	}
	return "?"
}

// submit runs the submission pipeline on the form file.
func (cli *commandLine) submit(path string, sess core.Session) error {
	store, err := loadForm(path)
	if err != nil {
		return err
	}
	fw := store.Snapshot()
	cli.printWarnings(fw)

	res := cli.svc.Submit(context.Background(), sess, fw)
	if res.Success {
		fmt.Fprintf(cli.stdout, "funding window %s created with programme(s) %s (submission %s)\n",
			res.WindowID, strings.Join(res.ProgrammeIDs, ", "), res.SubmissionID)
		return nil
	}

	if len(res.Fields) > 0 {
		fmt.Fprintln(cli.stdout, res.Error+":")
		cli.printErrors(res.Fields)
	}
	if res.PartiallyCreated() {
		fmt.Fprintf(cli.stdout, "funding window %s was created with programme(s) [%s] before the failure\n",
			res.WindowID, strings.Join(res.ProgrammeIDs, ", "))
	}
	return errors.New(res.Error)
}
