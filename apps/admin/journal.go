package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
)

// journal prints the submissions matching the filters as a table.
func (cli *commandLine) journal(actorID, agreementID, success, ordering string) error {
	filter := fundingwindow.SubmissionFilter{ActorID: actorID, AgreementID: agreementID}
	if success != "" {
		ok, err := strconv.ParseBool(success)
		if err != nil {
			return errors.Errorf("-success must be true or false (got %q)", success)
		}
		filter.Success = &ok
	}
	filter.Clean()

	subs, err := cli.svc.QuerySubmissions(
		context.Background(),
		filter,
		core.ParseOrderings(ordering, fundingwindow.SubmissionOrderFields...)...,
	)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}

	w := tabwriter.NewWriter(cli.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tACTOR\tAGREEMENT\tWINDOW\tWINDOW ID\tPROGRAMMES\tRESULT")
	for _, sub := range subs {
		result := "ok"
		if !sub.Success {
			result = fmt.Sprintf("failed at %s: %s", sub.Stage, sub.Error)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			sub.CreatedAt.Format("2006-01-02 15:04:05"), sub.ActorID, sub.AgreementID, sub.WindowName,
			sub.WindowID, len(sub.ProgrammeIDs), sub.ProgrammeCount, result)
	}
	return w.Flush()
}
