package inmemdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/seta/core/fundingwindow"
	"github.com/trezcool/seta/storage/database/repotest"
)

func TestSubmissionRepository(t *testing.T) {
	repotest.SubmissionRepository(t, NewSubmissionRepository())
}

func TestSubmissionRepository_Isolation(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository()
	ids := []string{"p-1"}

	_, err := repo.CreateSubmission(ctx, fundingwindow.Submission{ID: "sub-1", ProgrammeIDs: ids})
	require.NoError(t, err)
	ids[0] = "changed"

	got, err := repo.GetSubmission(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1"}, got.ProgrammeIDs)
}
