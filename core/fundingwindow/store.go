package fundingwindow

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/seta/core"
)

var newLocalID = uuid.NewString // mockable

// Store holds the form state of one funding-window session.
// Every mutation swaps in a new snapshot; snapshots handed out are never modified afterwards.
type Store struct {
	mu         sync.RWMutex
	snap       FundingWindow
	errs       ValidationErrors
	editing    bool
	submitting bool
	submitted  bool
}

// NewStore seeds the form from an existing window (edit mode) or defaults (create mode).
// The form always holds at least one Programme.
func NewStore(existing *FundingWindow, agreementID string) *Store {
	s := &Store{errs: ValidationErrors{}}
	if existing != nil {
		s.editing = true
		s.snap = existing.clone()
		for i := range s.snap.Programmes {
			if s.snap.Programmes[i].LocalID == "" {
				s.snap.Programmes[i].LocalID = newLocalID()
			}
		}
	}
	if agreementID = core.CleanString(agreementID); agreementID != "" {
		s.snap.AgreementID = agreementID
	}
	if len(s.snap.Programmes) == 0 {
		s.snap.Programmes = []Programme{newProgramme()}
	}
	return s
}

func newProgramme() Programme {
	return Programme{LocalID: newLocalID(), RequiredDocuments: []string{}}
}

// Snapshot returns the latest form state.
func (s *Store) Snapshot() FundingWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// Editing reports whether the form was seeded from an existing window.
func (s *Store) Editing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editing
}

// Errors returns the validation errors of the last submit attempt, minus the fields edited since.
func (s *Store) Errors() ValidationErrors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	errs := make(ValidationErrors, len(s.errs))
	for k, v := range s.errs {
		errs[k] = v
	}
	return errs
}

// SetErrors replaces the validation errors wholesale.
func (s *Store) SetErrors(errs ValidationErrors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = make(ValidationErrors, len(errs))
	for k, v := range errs {
		s.errs[k] = v
	}
}

// update applies fn to a copy of the current snapshot and swaps it in unless fn fails.
// A submitted form is frozen.
func (s *Store) update(fn func(fw *FundingWindow) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return ErrAlreadySubmitted
	}
	next := s.snap.clone()
	if err := fn(&next); err != nil {
		return err
	}
	s.snap = next
	return nil
}

// SetField replaces a top-level scalar field.
func (s *Store) SetField(name, value string) error {
	return s.SetFields(map[string]string{name: value})
}

// SetFields replaces several top-level scalar fields at once. Nothing is applied if one name is unknown.
func (s *Store) SetFields(values map[string]string) error {
	return s.update(func(fw *FundingWindow) error {
		for name, value := range values {
			if err := setField(fw, name, value); err != nil {
				return err
			}
		}
		for name := range values {
			delete(s.errs, name)
		}
		return nil
	})
}

func setField(fw *FundingWindow, name, value string) error {
	switch name {
	case FieldAgreementID:
		fw.AgreementID = value
	case FieldWindowName:
		fw.WindowName = value
	case FieldStartDate:
		fw.StartDate = value
	case FieldEndDate:
		fw.EndDate = value
	case FieldNumLearners:
		fw.NumLearners = value
	case FieldFinancialYear:
		fw.FinancialYear = value
	case FieldSlotsAvailable:
		fw.SlotsAvailable = value
	case FieldBudgetAllocation:
		fw.BudgetAllocation = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// SetProgrammeField replaces a scalar field on the Programme matching localID.
// The form is left untouched when no Programme matches.
func (s *Store) SetProgrammeField(localID, name, value string) error {
	return s.SetProgrammeFields(localID, map[string]string{name: value})
}

// SetProgrammeFields replaces several scalar fields of one Programme at once.
func (s *Store) SetProgrammeFields(localID string, values map[string]string) error {
	return s.UpdateProgramme(localID, values, nil)
}

// UpdateProgramme replaces scalar fields and, when docs is not nil, the required-document labels
// of one Programme. Nothing is applied if one name is unknown.
func (s *Store) UpdateProgramme(localID string, values map[string]string, docs []string) error {
	return s.update(func(fw *FundingWindow) error {
		idx := fw.ProgrammeIndex(localID)
		if idx < 0 {
			return ErrProgrammeNotFound
		}
		for name, value := range values {
			if err := setProgrammeField(&fw.Programmes[idx], name, value); err != nil {
				return err
			}
		}
		if docs != nil {
			fw.Programmes[idx].RequiredDocuments = cleanLabels(docs)
		}
		for name := range values {
			delete(s.errs, ProgrammeErrorKey(idx, name))
		}
		return nil
	})
}

func setProgrammeField(p *Programme, name, value string) error {
	switch name {
	case FieldProgrammeName:
		p.ProgrammeName = value
	case FieldDuration:
		p.Duration = value
	case FieldRequiredStudents:
		p.RequiredStudents = value
	case FieldProgrammeBudget:
		p.BudgetAllocation = value
	case FieldNotes:
		p.Notes = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// SetProgrammeDocuments replaces the required-document labels of a Programme.
func (s *Store) SetProgrammeDocuments(localID string, docs []string) error {
	if docs == nil {
		docs = []string{}
	}
	return s.UpdateProgramme(localID, nil, docs)
}

func cleanLabels(docs []string) []string {
	labels := make([]string, 0, len(docs))
	for _, d := range docs {
		if d = core.CleanString(d); d != "" {
			labels = append(labels, d)
		}
	}
	return labels
}

// AddProgramme appends an empty Programme and returns its local id.
func (s *Store) AddProgramme() (string, error) {
	p := newProgramme()
	err := s.update(func(fw *FundingWindow) error {
		fw.Programmes = append(fw.Programmes, p)
		return nil
	})
	if err != nil {
		return "", err
	}
	return p.LocalID, nil
}

// RemoveProgramme removes the matching Programme. Removing the last one is refused with ErrLastProgramme.
func (s *Store) RemoveProgramme(localID string) error {
	return s.update(func(fw *FundingWindow) error {
		idx := fw.ProgrammeIndex(localID)
		if idx < 0 {
			return ErrProgrammeNotFound
		}
		if len(fw.Programmes) <= 1 {
			return ErrLastProgramme
		}
		fw.Programmes = append(fw.Programmes[:idx], fw.Programmes[idx+1:]...)
		s.reindexErrors(idx)
		return nil
	})
}

// reindexErrors drops the errors of the removed Programme and shifts the ones after it.
func (s *Store) reindexErrors(removed int) {
	shifted := make(ValidationErrors, len(s.errs))
	for key, msg := range s.errs {
		idx, fld, ok := ParseProgrammeErrorKey(key)
		switch {
		case !ok:
			shifted[key] = msg
		case idx < removed:
			shifted[key] = msg
		case idx > removed:
			shifted[ProgrammeErrorKey(idx-1, fld)] = msg
		}
	}
	s.errs = shifted
}

// SetProgrammeFile attaches the timesheet template, replacing any prior one.
func (s *Store) SetProgrammeFile(localID string, file *TemplateFile) error {
	return s.update(func(fw *FundingWindow) error {
		idx := fw.ProgrammeIndex(localID)
		if idx < 0 {
			return ErrProgrammeNotFound
		}
		fw.Programmes[idx].TimesheetTemplate = file
		return nil
	})
}

// ClearProgrammeFile detaches the timesheet template.
func (s *Store) ClearProgrammeFile(localID string) error {
	return s.SetProgrammeFile(localID, nil)
}

// TotalProgrammeBudget sums the Programme budgets of the latest snapshot.
func (s *Store) TotalProgrammeBudget() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.TotalProgrammeBudget()
}

// BeginSubmit raises the submitting flag. A second call before EndSubmit fails with ErrSubmitInProgress.
func (s *Store) BeginSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitted {
		return ErrAlreadySubmitted
	}
	if s.submitting {
		return ErrSubmitInProgress
	}
	s.submitting = true
	return nil
}

// EndSubmit lowers the submitting flag. A successful submission freezes the form.
func (s *Store) EndSubmit(succeeded bool) {
	s.mu.Lock()
	s.submitting = false
	s.submitted = succeeded
	s.mu.Unlock()
}

// Submitted reports whether the form was successfully submitted.
func (s *Store) Submitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submitted
}

func (s *Store) Submitting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.submitting
}

// ProgrammeErrorKey builds the error key of a Programme field: `programme_<index>_<field>`.
func ProgrammeErrorKey(idx int, field string) string {
	return fmt.Sprintf("programme_%d_%s", idx, field)
}

// ParseProgrammeErrorKey splits a key built by ProgrammeErrorKey.
func ParseProgrammeErrorKey(key string) (int, string, bool) {
	if !strings.HasPrefix(key, "programme_") {
		return 0, "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(key, "programme_"), "_", 2)
	if len(parts) != 2 {
		return 0, "", false
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil || idx < 0 {
		return 0, "", false
	}
	return idx, parts[1], true
}
