package fundingwindow

import (
	"fmt"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/seta/core"
)

const (
	WarnOverBudget       = "over_budget"
	WarnEndBeforeStart   = "end_before_start"
	WarnSimilarProgramme = "similar_programme"

	dateLayout        = "2006-01-02"
	nameMaxSimilarity = .9
)

// Warning is advisory: it never blocks a submission.
type Warning struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Warnings derives the advisory warnings of a snapshot:
// - Programme budgets adding up to more than the window budget
// - end date before start date
// - Programme names that look like duplicates
func Warnings(fw FundingWindow) []Warning {
	warnings := make([]Warning, 0)

	if budget, ok := core.ParseNumber(fw.BudgetAllocation); ok {
		if total := fw.TotalProgrammeBudget(); total.GreaterThan(budget) {
			warnings = append(warnings, Warning{
				Code:  WarnOverBudget,
				Field: FieldBudgetAllocation,
				Message: fmt.Sprintf(
					"programme budgets (R %s) exceed the funding window budget (R %s) by R %s",
					total.StringFixed(2), budget.StringFixed(2), total.Sub(budget).StringFixed(2),
				),
			})
		}
	}

	start, sErr := time.Parse(dateLayout, core.CleanString(fw.StartDate))
	end, eErr := time.Parse(dateLayout, core.CleanString(fw.EndDate))
	if sErr == nil && eErr == nil && end.Before(start) {
		warnings = append(warnings, Warning{
			Code:    WarnEndBeforeStart,
			Field:   FieldEndDate,
			Message: "end date is before start date",
		})
	}

	names := make([]string, len(fw.Programmes))
	for i, p := range fw.Programmes {
		names[i] = core.CleanString(p.ProgrammeName, true /* lower */)
	}
	for i := range names {
		for j := i + 1; j < len(names); j++ {
			if similarity(names[i], names[j]) >= nameMaxSimilarity {
				warnings = append(warnings, Warning{
					Code:  WarnSimilarProgramme,
					Field: ProgrammeErrorKey(j, FieldProgrammeName),
					Message: fmt.Sprintf(
						"programme %q looks like a duplicate of %q",
						fw.Programmes[j].ProgrammeName, fw.Programmes[i].ProgrammeName,
					),
				})
			}
		}
	}
	return warnings
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}
