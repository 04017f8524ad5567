// Package repotest holds the behaviour every submission journal must share.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
)

func submissionIDs(subs []fundingwindow.Submission) []string {
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.ID)
	}
	return ids
}

// SubmissionRepository runs the journal contract against an empty repo.
func SubmissionRepository(t *testing.T, repo fundingwindow.Repository) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	failedIdx := 1

	subs := []fundingwindow.Submission{
		{
			ID:             "sub-1",
			ActorID:        "admin-1",
			AgreementID:    "AG-1",
			WindowName:     "Q1 2025",
			WindowID:       "fw-1",
			ProgrammeIDs:   []string{"p-1", "p-2"},
			ProgrammeCount: 2,
			Success:        true,
			Stage:          fundingwindow.StageSucceeded,
			CreatedAt:      base,
		},
		{
			ID:              "sub-2",
			ActorID:         "admin-1",
			AgreementID:     "AG-2",
			WindowName:      "Bursaries",
			WindowID:        "fw-2",
			ProgrammeIDs:    []string{"p-3"},
			ProgrammeCount:  3,
			Stage:           fundingwindow.StageCreatingChild,
			FailedProgramme: &failedIdx,
			Error:           `failed to create programme "Data201"`,
			CreatedAt:       base.Add(time.Hour),
		},
		{
			ID:             "sub-3",
			ActorID:        "admin-2",
			AgreementID:    "AG-1",
			WindowName:     "Artisans",
			ProgrammeCount: 1,
			Stage:          fundingwindow.StageCreatingParent,
			Error:          "failed to create funding window",
			CreatedAt:      base.Add(2 * time.Hour),
		},
	}
	for _, sub := range subs {
		_, err := repo.CreateSubmission(ctx, sub)
		require.NoError(t, err)
	}

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetSubmission(ctx, "sub-2")
		require.NoError(t, err)
		assert.Equal(t, "AG-2", got.AgreementID)
		assert.Equal(t, []string{"p-3"}, got.ProgrammeIDs)
		require.NotNil(t, got.FailedProgramme)
		assert.Equal(t, 1, *got.FailedProgramme)
		assert.Equal(t, fundingwindow.StageCreatingChild, got.Stage)
		assert.True(t, base.Add(time.Hour).Equal(got.CreatedAt))

		got, err = repo.GetSubmission(ctx, "sub-3")
		require.NoError(t, err)
		assert.Empty(t, got.WindowID)
		assert.Nil(t, got.FailedProgramme)
		assert.Equal(t, []string{}, got.ProgrammeIDs)

		_, err = repo.GetSubmission(ctx, "unknown")
		assert.ErrorIs(t, err, fundingwindow.ErrNotFound)
	})

	t.Run("query", func(t *testing.T) {
		yes, no := true, false
		tests := []struct {
			name      string
			filter    fundingwindow.SubmissionFilter
			orderings []core.DBOrdering
			want      []string
		}{
			{name: "newest first", want: []string{"sub-3", "sub-2", "sub-1"}},
			{name: "by actor", filter: fundingwindow.SubmissionFilter{ActorID: " admin-1 "}, want: []string{"sub-2", "sub-1"}},
			{name: "by agreement", filter: fundingwindow.SubmissionFilter{AgreementID: "AG-1"}, want: []string{"sub-3", "sub-1"}},
			{name: "succeeded", filter: fundingwindow.SubmissionFilter{Success: &yes}, want: []string{"sub-1"}},
			{name: "failed", filter: fundingwindow.SubmissionFilter{Success: &no}, want: []string{"sub-3", "sub-2"}},
			{name: "no match", filter: fundingwindow.SubmissionFilter{ActorID: "nobody"}, want: []string{}},
			{
				name:      "by window name",
				orderings: []core.DBOrdering{{Field: "window_name", Ascending: true}},
				want:      []string{"sub-3", "sub-2", "sub-1"},
			},
			{
				name:      "by agreement then oldest",
				orderings: []core.DBOrdering{{Field: "agreement_id", Ascending: true}, {Field: "created_at", Ascending: true}},
				want:      []string{"sub-1", "sub-3", "sub-2"},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.QuerySubmissions(ctx, tt.filter, tt.orderings...)
				require.NoError(t, err)
				assert.Equal(t, tt.want, submissionIDs(got))
			})
		}
	})
}
