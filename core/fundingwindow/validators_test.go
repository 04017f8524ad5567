package fundingwindow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/seta/tests"
)

func validForm() FundingWindow {
	return FundingWindow{
		AgreementID:      "AG-1",
		WindowName:       "Q1 2025",
		StartDate:        "2025-01-01",
		EndDate:          "2025-03-31",
		NumLearners:      "10",
		SlotsAvailable:   "10",
		BudgetAllocation: "50000",
		Programmes: []Programme{
			{LocalID: "p1", ProgrammeName: "Eng101", BudgetAllocation: "20000"},
		},
	}
}

func TestValidate(t *testing.T) {
	validate, translator := testutil.NewValidator()

	required := "this field is required"
	positive := "must be a number greater than 0"
	name0 := ProgrammeErrorKey(0, FieldProgrammeName)
	budget0 := ProgrammeErrorKey(0, FieldProgrammeBudget)
	budget1 := ProgrammeErrorKey(1, FieldProgrammeBudget)
	budget3 := ProgrammeErrorKey(3, FieldProgrammeBudget)

	tests := []struct {
		name   string
		modify func(fw *FundingWindow)
		want   ValidationErrors
	}{
		{name: "valid", modify: func(fw *FundingWindow) {}, want: ValidationErrors{}},
		{
			name:   "blank name",
			modify: func(fw *FundingWindow) { fw.WindowName = "   " },
			want:   ValidationErrors{FieldWindowName: required},
		},
		{
			name:   "missing dates",
			modify: func(fw *FundingWindow) { fw.StartDate, fw.EndDate = "", "" },
			want:   ValidationErrors{FieldStartDate: required, FieldEndDate: required},
		},
		{
			name:   "end before start is not an error",
			modify: func(fw *FundingWindow) { fw.StartDate, fw.EndDate = "2025-03-31", "2025-01-01" },
			want:   ValidationErrors{},
		},
		{
			name: "non-positive numbers",
			modify: func(fw *FundingWindow) {
				fw.NumLearners, fw.SlotsAvailable, fw.BudgetAllocation = "0", "-3", "lol"
			},
			want: ValidationErrors{FieldNumLearners: positive, FieldSlotsAvailable: positive, FieldBudgetAllocation: positive},
		},
		{
			name:   "optional financial year",
			modify: func(fw *FundingWindow) { fw.FinancialYear = "" },
			want:   ValidationErrors{},
		},
		{
			name: "every rule at once",
			modify: func(fw *FundingWindow) {
				*fw = FundingWindow{Programmes: []Programme{{}}}
			},
			want: ValidationErrors{
				FieldWindowName:       required,
				FieldStartDate:        required,
				FieldEndDate:          required,
				FieldNumLearners:      positive,
				FieldSlotsAvailable:   positive,
				FieldBudgetAllocation: positive,
				name0:                 required,
				budget0:               positive,
			},
		},
		{
			name: "one bad programme among good ones",
			modify: func(fw *FundingWindow) {
				fw.Programmes = append(fw.Programmes,
					Programme{LocalID: "p2", ProgrammeName: "Eng102", BudgetAllocation: "0"},
					Programme{LocalID: "p3", ProgrammeName: "Eng103", BudgetAllocation: "5000"},
					Programme{LocalID: "p4", ProgrammeName: "Eng104", BudgetAllocation: "R5000"},
				)
			},
			want: ValidationErrors{budget1: positive, budget3: positive},
		},
		{
			name: "optional programme fields are unchecked",
			modify: func(fw *FundingWindow) {
				fw.Programmes[0].Duration = ""
				fw.Programmes[0].RequiredStudents = "lol"
				fw.Programmes[0].Notes = ""
			},
			want: ValidationErrors{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := validForm()
			tt.modify(&fw)
			assert.Equal(t, tt.want, Validate(validate, translator, fw))
		})
	}
}

func TestValidate_unregisteredValidator(t *testing.T) {
	validate, translator := testutil.NewValidator()

	errs := Validate(validate, translator, FundingWindow{Programmes: []Programme{{}}})
	for _, fld := range []string{
		FieldWindowName,
		FieldStartDate,
		FieldEndDate,
		FieldNumLearners,
		FieldSlotsAvailable,
		FieldBudgetAllocation,
		ProgrammeErrorKey(0, FieldProgrammeName),
		ProgrammeErrorKey(0, FieldProgrammeBudget),
	} {
		assert.Contains(t, errs, fld)
	}

	InitValidators(validate)
	assert.Equal(t, errs, Validate(validate, translator, FundingWindow{Programmes: []Programme{{}}}))

	other, otherTranslator := testutil.NewValidator()
	svc := NewService(nil, nil, nil, nil, other, otherTranslator)
	assert.Equal(t, errs, svc.Validate(FundingWindow{Programmes: []Programme{{}}}))
}
