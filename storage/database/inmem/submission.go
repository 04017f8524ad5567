package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
)

type submissionRepository struct {
	mutex sync.RWMutex
	table map[string]fundingwindow.Submission
}

var _ fundingwindow.Repository = (*submissionRepository)(nil)

// NewSubmissionRepository returns a journal kept in memory; it is lost on restart.
func NewSubmissionRepository() *submissionRepository {
	return &submissionRepository{table: make(map[string]fundingwindow.Submission)}
}

func copySubmission(sub fundingwindow.Submission) fundingwindow.Submission {
	ids := make([]string, len(sub.ProgrammeIDs))
	copy(ids, sub.ProgrammeIDs)
	sub.ProgrammeIDs = ids
	if sub.FailedProgramme != nil {
		idx := *sub.FailedProgramme
		sub.FailedProgramme = &idx
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	return sub
}

func (repo *submissionRepository) CreateSubmission(_ context.Context, sub fundingwindow.Submission) (fundingwindow.Submission, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	sub = copySubmission(sub)
	repo.table[sub.ID] = sub
	return copySubmission(sub), nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (fundingwindow.Submission, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	if sub, ok := repo.table[id]; ok {
		return copySubmission(sub), nil
	}
	return fundingwindow.Submission{}, fundingwindow.ErrNotFound
}

func (repo *submissionRepository) QuerySubmissions(
	_ context.Context,
	filter fundingwindow.SubmissionFilter,
	orderings ...core.DBOrdering,
) ([]fundingwindow.Submission, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	filter.Clean()
	subs := make([]fundingwindow.Submission, 0, len(repo.table))
	for _, sub := range repo.table {
		if filter.ActorID != "" && sub.ActorID != filter.ActorID {
			continue
		}
		if filter.AgreementID != "" && sub.AgreementID != filter.AgreementID {
			continue
		}
		if filter.Success != nil && sub.Success != *filter.Success {
			continue
		}
		subs = append(subs, copySubmission(sub))
	}

	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(subs, func(i, j int) bool {
		for _, ord := range orderings {
			if c := compare(subs[i], subs[j], ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func compare(a, b fundingwindow.Submission, field string) int {
	switch field {
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	case "window_name":
		return compareStrings(a.WindowName, b.WindowName)
	case "agreement_id":
		return compareStrings(a.AgreementID, b.AgreementID)
	case "success":
		if a.Success != b.Success {
			if b.Success {
				return -1
			}
			return 1
		}
	}
	return 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
