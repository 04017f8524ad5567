package fundingwindow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/seta/core"
)

// DefaultDuration is sent for a Programme whose duration was left blank.
const DefaultDuration = "0 months"

// Top-level FundingWindow form fields.
const (
	FieldAgreementID      = "agreementId"
	FieldWindowName       = "windowName"
	FieldStartDate        = "startDate"
	FieldEndDate          = "endDate"
	FieldNumLearners      = "numLearners"
	FieldFinancialYear    = "financialYear"
	FieldSlotsAvailable   = "slotsAvailable"
	FieldBudgetAllocation = "budgetAllocation"
)

// Programme form fields.
const (
	FieldProgrammeName     = "programmeName"
	FieldDuration          = "duration"
	FieldRequiredStudents  = "requiredStudents"
	FieldProgrammeBudget   = "budgetAllocation"
	FieldNotes             = "notes"
	FieldRequiredDocuments = "requiredDocuments"
)

// TemplateFile is a timesheet template attached to a Programme.
// It is never mutated once attached; replacing it swaps the pointer.
type TemplateFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"-"`
}

// Programme is a funded training offering nested under a FundingWindow.
// Values are kept as entered; numbers are coerced on submission.
type Programme struct {
	LocalID           string        `json:"localId"` // client-side list key, not the server id
	ProgrammeName     string        `json:"programmeName"`
	Duration          string        `json:"duration"`
	RequiredStudents  string        `json:"requiredStudents"`
	BudgetAllocation  string        `json:"budgetAllocation"`
	Notes             string        `json:"notes"`
	RequiredDocuments []string      `json:"requiredDocuments"`
	TimesheetTemplate *TemplateFile `json:"timesheetTemplate,omitempty"`
}

func (p Programme) clone() Programme {
	if p.RequiredDocuments != nil {
		docs := make([]string, len(p.RequiredDocuments))
		copy(docs, p.RequiredDocuments)
		p.RequiredDocuments = docs
	}
	return p
}

// FundingWindow is the form snapshot of a funding window and its Programmes.
type FundingWindow struct {
	AgreementID      string      `json:"agreementId"`
	WindowName       string      `json:"windowName"`
	StartDate        string      `json:"startDate"`
	EndDate          string      `json:"endDate"`
	NumLearners      string      `json:"numLearners"`
	FinancialYear    string      `json:"financialYear"`
	SlotsAvailable   string      `json:"slotsAvailable"`
	BudgetAllocation string      `json:"budgetAllocation"`
	Programmes       []Programme `json:"programmes"`
}

func (fw FundingWindow) clone() FundingWindow {
	progs := make([]Programme, 0, len(fw.Programmes))
	for _, p := range fw.Programmes {
		progs = append(progs, p.clone())
	}
	fw.Programmes = progs
	return fw
}

// ProgrammeIndex returns the position of the Programme with the given local id, or -1.
func (fw FundingWindow) ProgrammeIndex(localID string) int {
	for i, p := range fw.Programmes {
		if p.LocalID == localID {
			return i
		}
	}
	return -1
}

// TotalProgrammeBudget sums the Programme budgets; non-numeric entries count as 0.
func (fw FundingWindow) TotalProgrammeBudget() decimal.Decimal {
	total := decimal.Zero
	for _, p := range fw.Programmes {
		if amount, ok := core.ParseNumber(p.BudgetAllocation); ok {
			total = total.Add(amount)
		}
	}
	return total
}

// ValidationErrors maps a field key to its message. Programme keys are `programme_<index>_<field>`.
type ValidationErrors map[string]string

func (ve ValidationErrors) IsEmpty() bool { return len(ve) == 0 }

func (ve ValidationErrors) FieldErrors() []core.FieldError {
	flds := make([]core.FieldError, 0, len(ve))
	for fld, msg := range ve {
		flds = append(flds, core.FieldError{Field: fld, Error: msg})
	}
	return flds
}

// NewFundingWindow is the creation payload for a FundingWindow.
type NewFundingWindow struct {
	AdminID          string
	AgreementID      string
	Name             string
	StartDate        string
	EndDate          string
	NumLearners      decimal.Decimal
	FinancialYear    string
	SlotsAvailable   decimal.Decimal
	BudgetAllocation decimal.Decimal
}

// NewProgramme is the creation payload for a Programme.
type NewProgramme struct {
	AdminID           string
	AgreementID       string
	FundingWindowID   string
	Name              string
	Duration          string
	RequiredStudents  decimal.Decimal
	Budget            decimal.Decimal
	Notes             string
	RequiredDocuments []string
	Template          *TemplateFile
}

// Stage is a state of the submission pipeline.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageValidating     Stage = "validating"
	StageCreatingParent Stage = "creating_parent"
	StageCreatingChild  Stage = "creating_child"
	StageSucceeded      Stage = "succeeded"
	StageFailed         Stage = "failed"
)

// Result is the outcome of a submission. On failure, FailedAt tells where the pipeline stopped;
// WindowID and ProgrammeIDs list what was already created server-side.
type Result struct {
	Success         bool             `json:"success"`
	Error           string           `json:"error,omitempty"`
	Stage           Stage            `json:"stage"`
	FailedAt        Stage            `json:"failedAt,omitempty"`
	FailedProgramme *int             `json:"failedProgramme,omitempty"`
	WindowID        string           `json:"windowId,omitempty"`
	ProgrammeIDs    []string         `json:"programmeIds,omitempty"`
	Fields          ValidationErrors `json:"fields,omitempty"`
	SubmissionID    string           `json:"submissionId,omitempty"`

	err error
}

// Err returns the underlying error of a failed Result.
func (r Result) Err() error { return r.err }

// PartiallyCreated reports whether a failed submission left records on the server.
func (r Result) PartiallyCreated() bool { return !r.Success && r.WindowID != "" }

// Submission is a journal entry for a submission that reached the remote API.
type Submission struct {
	ID              string    `json:"id"`
	ActorID         string    `json:"actor_id"`
	AgreementID     string    `json:"agreement_id"`
	WindowName      string    `json:"window_name"`
	WindowID        string    `json:"window_id,omitempty"`
	ProgrammeIDs    []string  `json:"programme_ids"`
	ProgrammeCount  int       `json:"programme_count"`
	Success         bool      `json:"success"`
	Stage           Stage     `json:"stage"`
	FailedProgramme *int      `json:"failed_programme,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"` // UTC
}

type SubmissionFilter struct {
	ActorID     string `query:"actor_id"`
	AgreementID string `query:"agreement_id"`
	Success     *bool  `query:"success"`
}

func (sf *SubmissionFilter) Clean() {
	sf.ActorID = core.CleanString(sf.ActorID)
	sf.AgreementID = core.CleanString(sf.AgreementID)
}

// SubmissionOrderFields are the fields submissions may be ordered by.
var SubmissionOrderFields = []string{"created_at", "window_name", "agreement_id", "success"}
