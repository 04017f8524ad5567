package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
)

const submissionColumns = "id, actor_id, agreement_id, window_name, window_id, programme_ids, programme_count, " +
	"success, stage, failed_programme, error, created_at"

type submissionRow struct {
	ID              string      `db:"id"`
	ActorID         string      `db:"actor_id"`
	AgreementID     string      `db:"agreement_id"`
	WindowName      string      `db:"window_name"`
	WindowID        null.String `db:"window_id"`
	ProgrammeIDs    string      `db:"programme_ids"` // JSON array
	ProgrammeCount  int         `db:"programme_count"`
	Success         bool        `db:"success"`
	Stage           string      `db:"stage"`
	FailedProgramme null.Int    `db:"failed_programme"`
	Error           null.String `db:"error"`
	CreatedAt       time.Time   `db:"created_at"`
}

type submissionRepository struct {
	db *sqlx.DB
}

var _ fundingwindow.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *sqlx.DB) *submissionRepository {
	return &submissionRepository{db: db}
}

func (repo submissionRepository) toRow(sub fundingwindow.Submission) (submissionRow, error) {
	ids := sub.ProgrammeIDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return submissionRow{}, errors.Wrap(err, "encoding programme ids")
	}
	row := submissionRow{
		ID:             sub.ID,
		ActorID:        sub.ActorID,
		AgreementID:    sub.AgreementID,
		WindowName:     sub.WindowName,
		WindowID:       null.NewString(sub.WindowID, sub.WindowID != ""),
		ProgrammeIDs:   string(idsJSON),
		ProgrammeCount: sub.ProgrammeCount,
		Success:        sub.Success,
		Stage:          string(sub.Stage),
		Error:          null.NewString(sub.Error, sub.Error != ""),
		CreatedAt:      sub.CreatedAt.UTC(),
	}
	if sub.FailedProgramme != nil {
		row.FailedProgramme = null.IntFrom(*sub.FailedProgramme)
	}
	return row, nil
}

func (repo submissionRepository) fromRow(row submissionRow) (fundingwindow.Submission, error) {
	sub := fundingwindow.Submission{
		ID:              row.ID,
		ActorID:         row.ActorID,
		AgreementID:     row.AgreementID,
		WindowName:      row.WindowName,
		WindowID:        row.WindowID.String,
		ProgrammeCount:  row.ProgrammeCount,
		Success:         row.Success,
		Stage:           fundingwindow.Stage(row.Stage),
		FailedProgramme: row.FailedProgramme.Ptr(),
		Error:           row.Error.String,
		CreatedAt:       row.CreatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(row.ProgrammeIDs), &sub.ProgrammeIDs); err != nil {
		return fundingwindow.Submission{}, errors.Wrap(err, "decoding programme ids")
	}
	if sub.ProgrammeIDs == nil {
		sub.ProgrammeIDs = []string{}
	}
	return sub, nil
}

func (repo submissionRepository) CreateSubmission(ctx context.Context, sub fundingwindow.Submission) (fundingwindow.Submission, error) {
	row, err := repo.toRow(sub)
	if err != nil {
		return fundingwindow.Submission{}, err
	}
	q := "INSERT INTO submissions (" + submissionColumns + ") VALUES " +
		"(:id, :actor_id, :agreement_id, :window_name, :window_id, :programme_ids, :programme_count, " +
		":success, :stage, :failed_programme, :error, :created_at)"
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return fundingwindow.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return repo.fromRow(row)
}

func (repo submissionRepository) GetSubmission(ctx context.Context, id string) (fundingwindow.Submission, error) {
	var row submissionRow
	q := repo.db.Rebind("SELECT " + submissionColumns + " FROM submissions WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fundingwindow.Submission{}, fundingwindow.ErrNotFound
		}
		return fundingwindow.Submission{}, errors.Wrap(err, "finding submission by ID")
	}
	return repo.fromRow(row)
}

func (repo submissionRepository) QuerySubmissions(
	ctx context.Context,
	filter fundingwindow.SubmissionFilter,
	orderings ...core.DBOrdering,
) ([]fundingwindow.Submission, error) {
	var (
		where []string
		args  []interface{}
	)
	filter.Clean()
	if filter.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.AgreementID != "" {
		where = append(where, "agreement_id = ?")
		args = append(args, filter.AgreementID)
	}
	if filter.Success != nil {
		where = append(where, "success = ?")
		args = append(args, *filter.Success)
	}

	q := "SELECT " + submissionColumns + " FROM submissions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + orderBy(orderings)

	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	subs := make([]fundingwindow.Submission, 0, len(rows))
	for _, row := range rows {
		sub, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// orderBy only keeps orderings on known columns; newest first by default.
func orderBy(orderings []core.DBOrdering) string {
	orderList := make([]string, 0, len(orderings)+1)
	for _, ord := range orderings {
		for _, fld := range fundingwindow.SubmissionOrderFields {
			if ord.Field == fld {
				orderList = append(orderList, ord.String())
				break
			}
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "created_at DESC")
	}
	orderList = append(orderList, "id ASC") // tie breaker
	return strings.Join(orderList, ", ")
}
