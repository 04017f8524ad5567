package main

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/seta/core/fundingwindow"
)

type (
	// formFile is the YAML rendition of a funding window form. Numbers may be written bare.
	formFile struct {
		AgreementID      string          `yaml:"agreementId"`
		WindowName       string          `yaml:"windowName"`
		StartDate        string          `yaml:"startDate"`
		EndDate          string          `yaml:"endDate"`
		NumLearners      string          `yaml:"numLearners"`
		FinancialYear    string          `yaml:"financialYear"`
		SlotsAvailable   string          `yaml:"slotsAvailable"`
		BudgetAllocation string          `yaml:"budgetAllocation"`
		Programmes       []programmeFile `yaml:"programmes"`
	}

	programmeFile struct {
		ProgrammeName     string   `yaml:"programmeName"`
		Duration          string   `yaml:"duration"`
		RequiredStudents  string   `yaml:"requiredStudents"`
		BudgetAllocation  string   `yaml:"budgetAllocation"`
		Notes             string   `yaml:"notes"`
		RequiredDocuments []string `yaml:"requiredDocuments"`
		TimesheetTemplate string   `yaml:"timesheetTemplate"` // path, relative to the form file
	}
)

// loadForm reads a form file into a Store, attaching the timesheet templates it points to.
func loadForm(path string) (*fundingwindow.Store, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading form file")
	}
	var ff formFile
	if err = yaml.Unmarshal(content, &ff); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	store := fundingwindow.NewStore(nil, ff.AgreementID)
	err = store.SetFields(map[string]string{
		fundingwindow.FieldWindowName:       ff.WindowName,
		fundingwindow.FieldStartDate:        ff.StartDate,
		fundingwindow.FieldEndDate:          ff.EndDate,
		fundingwindow.FieldNumLearners:      ff.NumLearners,
		fundingwindow.FieldFinancialYear:    ff.FinancialYear,
		fundingwindow.FieldSlotsAvailable:   ff.SlotsAvailable,
		fundingwindow.FieldBudgetAllocation: ff.BudgetAllocation,
	})
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	localID := store.Snapshot().Programmes[0].LocalID
	for i, pf := range ff.Programmes {
		if i > 0 {
			if localID, err = store.AddProgramme(); err != nil {
				return nil, err
			}
		}
		if err = fillProgramme(store, localID, pf, dir); err != nil {
			return nil, errors.Wrapf(err, "programme %d", i)
		}
	}
	return store, nil
}

func fillProgramme(store *fundingwindow.Store, localID string, pf programmeFile, dir string) error {
	err := store.SetProgrammeFields(localID, map[string]string{
		fundingwindow.FieldProgrammeName:    pf.ProgrammeName,
		fundingwindow.FieldDuration:         pf.Duration,
		fundingwindow.FieldRequiredStudents: pf.RequiredStudents,
		fundingwindow.FieldProgrammeBudget:  pf.BudgetAllocation,
		fundingwindow.FieldNotes:            pf.Notes,
	})
	if err != nil {
		return err
	}
	if err = store.SetProgrammeDocuments(localID, pf.RequiredDocuments); err != nil {
		return err
	}
	if pf.TimesheetTemplate == "" {
		return nil
	}

	fp := pf.TimesheetTemplate
	if !filepath.IsAbs(fp) {
		fp = filepath.Join(dir, fp)
	}
	content, err := os.ReadFile(fp)
	if err != nil {
		return errors.Wrap(err, "reading timesheet template")
	}
	ct := mime.TypeByExtension(filepath.Ext(fp))
	if ct == "" {
		ct = http.DetectContentType(content)
	}
	return store.SetProgrammeFile(localID, &fundingwindow.TemplateFile{
		Name:        filepath.Base(fp),
		Size:        int64(len(content)),
		ContentType: ct,
		Content:     content,
	})
}
