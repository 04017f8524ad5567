package fundingwindow

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/seta/core"
)

var NowFunc = time.Now // mockable

type (
	// API is the remote SETA API. CreateFundingWindow returns an empty id when the response carried none.
	API interface {
		CreateFundingWindow(ctx context.Context, sess core.Session, nfw NewFundingWindow) (string, error)
		CreateProgramme(ctx context.Context, sess core.Session, np NewProgramme) (string, error)
	}

	// Repository is the submission journal.
	Repository interface {
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		QuerySubmissions(ctx context.Context, filter SubmissionFilter, orderings ...core.DBOrdering) ([]Submission, error)
	}

	ServiceInterface interface {
		Validate(fw FundingWindow) ValidationErrors
		Submit(ctx context.Context, sess core.Session, fw FundingWindow) Result
		GetSubmission(ctx context.Context, id string) (Submission, error)
		QuerySubmissions(ctx context.Context, filter SubmissionFilter, orderings ...core.DBOrdering) ([]Submission, error)
	}

	Service struct {
		api        API
		repo       Repository
		mailSvc    core.EmailService
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ ServiceInterface = (*Service)(nil)

// NewService returns the submission pipeline. mailSvc may be nil to disable receipts.
func NewService(
	api API,
	repo Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) *Service {
	InitValidators(validate)
	return &Service{
		api:        api,
		repo:       repo,
		mailSvc:    mailSvc,
		logger:     logger,
		validate:   validate,
		translator: translator,
	}
}

func (svc *Service) Validate(fw FundingWindow) ValidationErrors {
	return Validate(svc.validate, svc.translator, fw)
}

// Submit validates fw then creates the FundingWindow and its Programmes one after the other.
// The first failure stops the pipeline; records created before it are kept on the server.
func (svc *Service) Submit(ctx context.Context, sess core.Session, fw FundingWindow) Result {
	var res Result
	fail := func(at Stage, err error, msg string) Result {
		res.Stage = StageFailed
		res.FailedAt = at
		res.Error = msg
		res.err = err
		return res
	}

	// ValidatingLocally
	if errs := svc.Validate(fw); !errs.IsEmpty() {
		res.Fields = errs
		return fail(StageValidating, core.NewValidationError(ErrInvalidForm, errs.FieldErrors()...), ErrInvalidForm.Error())
	}
	if err := sess.Valid(); err != nil {
		return fail(StageValidating, err, err.Error())
	}

	// CreatingParent
	windowID, err := svc.api.CreateFundingWindow(ctx, sess, buildFundingWindow(sess, fw))
	if err != nil {
		res = fail(StageCreatingParent, errors.Wrap(err, "creating funding window"), userMessage(err, errCreateWindowFallback))
		return svc.record(ctx, sess, fw, res)
	}
	if windowID == "" {
		res = fail(StageCreatingParent, ErrMalformedResponse, ErrMalformedResponse.Error())
		return svc.record(ctx, sess, fw, res)
	}
	res.WindowID = windowID

	// CreatingChild(i)
	res.ProgrammeIDs = make([]string, 0, len(fw.Programmes))
	for i, p := range fw.Programmes {
		np := buildProgramme(sess, fw.AgreementID, windowID, p)
		progID, err := svc.api.CreateProgramme(ctx, sess, np)
		if err != nil {
			idx := i
			res.FailedProgramme = &idx
			res = fail(
				StageCreatingChild,
				errors.Wrapf(err, "creating programme %d", i),
				userMessage(err, createProgrammeFallback(np.Name)),
			)
			return svc.record(ctx, sess, fw, res)
		}
		res.ProgrammeIDs = append(res.ProgrammeIDs, progID)
	}

	res.Success = true
	res.Stage = StageSucceeded
	return svc.record(ctx, sess, fw, res)
}

// record journals a submission that reached the remote API and mails a receipt to the actor.
// Journal failures are logged; they never change the outcome.
func (svc *Service) record(ctx context.Context, sess core.Session, fw FundingWindow, res Result) Result {
	sub := Submission{
		ID:              uuid.NewString(),
		ActorID:         sess.ActorID,
		AgreementID:     fw.AgreementID,
		WindowName:      core.CleanString(fw.WindowName),
		WindowID:        res.WindowID,
		ProgrammeIDs:    res.ProgrammeIDs,
		ProgrammeCount:  len(fw.Programmes),
		Success:         res.Success,
		Stage:           res.Stage,
		FailedProgramme: res.FailedProgramme,
		Error:           res.Error,
		CreatedAt:       NowFunc().UTC(),
	}
	if res.FailedAt != "" {
		sub.Stage = res.FailedAt
	}
	if sub.ProgrammeIDs == nil {
		sub.ProgrammeIDs = []string{}
	}

	if svc.repo != nil {
		saved, err := svc.repo.CreateSubmission(ctx, sub)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("journaling submission: %v", err), errors.Wrap(err, "journaling submission"), sess)
		} else {
			sub = saved
		}
	}
	res.SubmissionID = sub.ID

	if res.Success {
		svc.logger.Info(fmt.Sprintf("funding window %s created with %d programme(s)", res.WindowID, len(res.ProgrammeIDs)), sess)
	} else {
		svc.logger.Warn(fmt.Sprintf("submission %s failed at %s: %s", sub.ID, res.FailedAt, res.Error), res.err, sess)
	}

	svc.sendReceipt(sess, sub)
	return res
}

func (svc *Service) sendReceipt(sess core.Session, sub Submission) {
	if svc.mailSvc == nil || sess.Email == "" {
		return
	}
	name := sess.Username
	if name == "" {
		name = sess.Email
	}
	subject := fmt.Sprintf("Funding window %q created", sub.WindowName)
	if !sub.Success {
		subject = fmt.Sprintf("Funding window %q failed", sub.WindowName)
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: sess.Email}},
		Subject:      subject,
		TemplateName: "submission_receipt",
		TemplateData: map[string]interface{}{
			"ActorName":      name,
			"SubmissionID":   sub.ID,
			"AgreementID":    sub.AgreementID,
			"WindowName":     sub.WindowName,
			"WindowID":       sub.WindowID,
			"ProgrammeIDs":   sub.ProgrammeIDs,
			"ProgrammeCount": sub.ProgrammeCount,
			"Success":        sub.Success,
			"Error":          sub.Error,
		},
	})
}

func (svc *Service) GetSubmission(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

func (svc *Service) QuerySubmissions(ctx context.Context, filter SubmissionFilter, orderings ...core.DBOrdering) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, filter, orderings...)
}

func buildFundingWindow(sess core.Session, fw FundingWindow) NewFundingWindow {
	numLearners, _ := core.ParseNumber(fw.NumLearners)
	slots, _ := core.ParseNumber(fw.SlotsAvailable)
	budget, _ := core.ParseNumber(fw.BudgetAllocation)
	return NewFundingWindow{
		AdminID:          sess.ActorID,
		AgreementID:      core.CleanString(fw.AgreementID),
		Name:             core.CleanString(fw.WindowName),
		StartDate:        core.CleanString(fw.StartDate),
		EndDate:          core.CleanString(fw.EndDate),
		NumLearners:      numLearners,
		FinancialYear:    core.CleanString(fw.FinancialYear),
		SlotsAvailable:   slots,
		BudgetAllocation: budget,
	}
}

func buildProgramme(sess core.Session, agreementID, windowID string, p Programme) NewProgramme {
	duration := core.CleanString(p.Duration)
	if duration == "" {
		duration = DefaultDuration
	}
	students, _ := core.ParseNumber(p.RequiredStudents)
	budget, _ := core.ParseNumber(p.BudgetAllocation)
	docs := make([]string, 0, len(p.RequiredDocuments))
	for _, d := range p.RequiredDocuments {
		if d = core.CleanString(d); d != "" {
			docs = append(docs, d)
		}
	}
	return NewProgramme{
		AdminID:           sess.ActorID,
		AgreementID:       core.CleanString(agreementID),
		FundingWindowID:   windowID,
		Name:              core.CleanString(p.ProgrammeName),
		Duration:          duration,
		RequiredStudents:  students,
		Budget:            budget,
		Notes:             p.Notes,
		RequiredDocuments: docs,
		Template:          p.TimesheetTemplate,
	}
}
