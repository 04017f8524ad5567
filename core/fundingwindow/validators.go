package fundingwindow

import (
	"sync"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/seta/core"
)

var requiredTag = "required"

var registered sync.Map // *validator.Validate -> *sync.Once

// InitValidators registers the FundingWindow rules on validate. It is safe to call more than once.
func InitValidators(validate *validator.Validate) {
	once, _ := registered.LoadOrStore(validate, new(sync.Once))
	once.(*sync.Once).Do(func() {
		validate.RegisterStructValidation(fundingWindowStructValidation, FundingWindow{})
	})
}

// Validate checks every rule on fw and reports all violations together. An empty mapping means valid.
func Validate(validate *validator.Validate, translator ut.Translator, fw FundingWindow) ValidationErrors {
	InitValidators(validate)
	errs := ValidationErrors{}
	err := validate.Struct(fw)
	if err == nil {
		return errs
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs[""] = err.Error()
		return errs
	}
	for _, vErr := range vErrs {
		errs[vErr.Field()] = vErr.Translate(translator)
	}
	return errs
}

// fundingWindowStructValidation does struct level validation on FundingWindow forms:
// - windowName, startDate, endDate: required
// - numLearners, slotsAvailable, budgetAllocation: number > 0
// - per Programme: programmeName required, budgetAllocation number > 0
// Dates are not compared with each other; see Warnings.
func fundingWindowStructValidation(sl validator.StructLevel) {
	fw, ok := sl.Current().Interface().(FundingWindow)
	if !ok {
		return
	}

	required := func(val, field string) {
		if core.CleanString(val) == "" {
			sl.ReportError(val, field, field, requiredTag, "")
		}
	}
	positive := func(val, field string) {
		if !core.IsPositiveNumber(val) {
			sl.ReportError(val, field, field, core.PositiveNumberTag, "")
		}
	}

	required(fw.WindowName, FieldWindowName)
	required(fw.StartDate, FieldStartDate)
	required(fw.EndDate, FieldEndDate)
	positive(fw.NumLearners, FieldNumLearners)
	positive(fw.SlotsAvailable, FieldSlotsAvailable)
	positive(fw.BudgetAllocation, FieldBudgetAllocation)

	for i, p := range fw.Programmes {
		required(p.ProgrammeName, ProgrammeErrorKey(i, FieldProgrammeName))
		positive(p.BudgetAllocation, ProgrammeErrorKey(i, FieldProgrammeBudget))
	}
}
