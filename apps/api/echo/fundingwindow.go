package echoapi

import (
	"context"
	"io"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
)

const (
	templateFormField = "file"
	maxTemplateSize   = 10 << 20 // 10 MiB
)

var errTemplateTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "timesheet template must not exceed 10 MiB")

type fundingWindowApi struct {
	forms  *formRegistry
	svc    fundingwindow.ServiceInterface
	logger core.Logger
}

func registerFundingWindowAPI(
	g *echo.Group,
	forms *formRegistry,
	svc fundingwindow.ServiceInterface,
	logger core.Logger,
) {
	api := fundingWindowApi{
		forms:  forms,
		svc:    svc,
		logger: logger,
	}

	fg := g.Group("/funding-windows/forms")
	fg.POST("", api.open)

	// detail endpoints
	dg := fg.Group("/:id", formOwnerMiddleware(forms))
	dg.GET("", api.retrieve)
	dg.PATCH("", api.update)
	dg.DELETE("", api.discard)
	dg.POST("/validate", api.validate)
	dg.POST("/submit", api.submit)

	dg.POST("/programmes", api.addProgramme)
	dg.PATCH("/programmes/:pid", api.updateProgramme)
	dg.DELETE("/programmes/:pid", api.removeProgramme)
	dg.PUT("/programmes/:pid/template", api.setTemplate)
	dg.DELETE("/programmes/:pid/template", api.clearTemplate)
}

type (
	OpenFormRequest struct {
		AgreementID    string                       `json:"agreementId"`
		ExistingWindow *fundingwindow.FundingWindow `json:"existingWindow"`
	}

	// FormView is a form snapshot with everything derived from it.
	FormView struct {
		ID                   string                         `json:"id"`
		Editing              bool                           `json:"editing"`
		Submitting           bool                           `json:"submitting"`
		Submitted            bool                           `json:"submitted"`
		Form                 fundingwindow.FundingWindow    `json:"form"`
		TotalProgrammeBudget decimal.Decimal                `json:"totalProgrammeBudget"`
		RemainingBudget      *decimal.Decimal               `json:"remainingBudget"` // null while the window budget is not a number
		Warnings             []fundingwindow.Warning        `json:"warnings"`
		Errors               fundingwindow.ValidationErrors `json:"errors"`
	}

	ProgrammeResponse struct {
		LocalID string `json:"localId"`
	}
)

func newFormView(id string, store *fundingwindow.Store) FormView {
	fw := store.Snapshot()
	total := fw.TotalProgrammeBudget()
	view := FormView{
		ID:                   id,
		Editing:              store.Editing(),
		Submitting:           store.Submitting(),
		Submitted:            store.Submitted(),
		Form:                 fw,
		TotalProgrammeBudget: total,
		Warnings:             fundingwindow.Warnings(fw),
		Errors:               store.Errors(),
	}
	if budget, ok := core.ParseNumber(fw.BudgetAllocation); ok {
		remaining := budget.Sub(total)
		view.RemainingBudget = &remaining
	}
	return view
}

// Handlers

func (api *fundingWindowApi) open(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}

	var data OpenFormRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OpenFormRequest")
	}

	id, store := api.forms.open(sess.ActorID, data.ExistingWindow, data.AgreementID)
	return ctx.JSON(http.StatusCreated, newFormView(id, store))
}

func (api *fundingWindowApi) retrieve(ctx echo.Context) error {
	store, err := getContextForm(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newFormView(ctx.Param("id"), store))
}

// update sets every field of the JSON body; nothing is applied when one field is rejected.
func (api *fundingWindowApi) update(ctx echo.Context) error {
	store, err := getContextForm(ctx)
	if err != nil {
		return err
	}

	data, err := bindJSONObject(ctx)
	if err != nil {
		return err
	}
	values := make(map[string]string, len(data))
	for field, v := range data {
		if values[field], err = formValue(field, v); err != nil {
			return err
		}
	}
	if err = store.SetFields(values); err != nil {
		return errors.Wrap(err, "setting fields")
	}
	return ctx.JSON(http.StatusOK, newFormView(ctx.Param("id"), store))
}

func (api *fundingWindowApi) discard(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	if !api.forms.discard(ctx.Param("id"), sess.ActorID) {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *fundingWindowApi) addProgramme(ctx echo.Context) error {
	store, err := getContextForm(ctx)
	if err != nil {
		return err
	}
	localID, err := store.AddProgramme()
	if err != nil {
		return errors.Wrap(err, "adding programme")
	}
	return ctx.JSON(http.StatusCreated, ProgrammeResponse{LocalID: localID})
}

func (api *fundingWindowApi) updateProgramme(ctx echo.Context) error {
	store, err := getContextForm(ctx)
	if err != nil {
		return err
	}

	data, err := bindJSONObject(ctx)
	if err != nil {
		return err
	}
	var docs []string
	values := make(map[string]string, len(data))
	for field, v := range data {
		if field == fundingwindow.FieldRequiredDocuments {
			if docs, err = formList(field, v); err != nil {
				return err
			}
			continue
		}
		if values[field], err = formValue(field, v); err != nil {
			return err
		}
	}

	if err = store.UpdateProgramme(ctx.Param("pid"), values, docs); err != nil {
		return errors.Wrap(err, "updating programme")
	}
	return ctx.JSON(http.StatusOK, newFormView(ctx.Param("id"), store))
}

func (api *fundingWindowApi) removeProgramme(ctx echo.Context) error {
	store, err := getContextForm(ctx)
	if err != nil {
		return err
	}
	if err = store.RemoveProgramme(ctx.Param("pid")); err != nil {
		return errors.Wrap(err, "removing programme")
	}
	return ctx.JSON(http.StatusOK, newFormView(ctx.Param("id"), store))
}

func (api *fundingWindowApi) setTemplate(ctx echo.Context) error {
	store, err := getContextForm(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile(templateFormField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "a `file` upload is required").SetInternal(err)
	}
	if fh.Size > maxTemplateSize {
		return errTemplateTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded template")
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxTemplateSize+1))
	if err != nil {
		return errors.Wrap(err, "reading uploaded template")
	}
	if len(content) > maxTemplateSize {
		return errTemplateTooLarge
	}

	ct := fh.Header.Get(echo.HeaderContentType)
	if ct == "" {
		ct = http.DetectContentType(content)
	}
	tf := &fundingwindow.TemplateFile{
		Name:        fh.Filename,
		Size:        int64(len(content)),
		ContentType: ct,
		Content:     content,
	}
	if err = store.SetProgrammeFile(ctx.Param("pid"), tf); err != nil {
		return errors.Wrap(err, "attaching template")
	}
	return ctx.JSON(http.StatusOK, tf)
}

func (api *fundingWindowApi) clearTemplate(ctx echo.Context) error {
	store, err := getContextForm(ctx)
	if err != nil {
		return err
	}
	if err = store.ClearProgrammeFile(ctx.Param("pid")); err != nil {
		return errors.Wrap(err, "detaching template")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// validate keeps the errors on the form and answers 400 with them when any.
func (api *fundingWindowApi) validate(ctx echo.Context) error {
	store, err := getContextForm(ctx)
	if err != nil {
		return err
	}

	errs := api.svc.Validate(store.Snapshot())
	store.SetErrors(errs)
	if !errs.IsEmpty() {
		return core.NewValidationError(fundingwindow.ErrInvalidForm, sortedFieldErrors(errs)...)
	}
	return ctx.JSON(http.StatusOK, fundingwindow.ValidationErrors{})
}

// submit runs the pipeline on the latest snapshot. A client going away does not abort it.
func (api *fundingWindowApi) submit(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}
	store, err := getContextForm(ctx)
	if err != nil {
		return err
	}

	if err = store.BeginSubmit(); err != nil {
		return err
	}
	res := api.svc.Submit(context.WithoutCancel(ctx.Request().Context()), sess, store.Snapshot())
	store.SetErrors(res.Fields)
	store.EndSubmit(res.Success)

	switch {
	case res.Success:
		return ctx.JSON(http.StatusCreated, res)
	case len(res.Fields) > 0:
		return res.Err()
	}
	return ctx.JSON(http.StatusOK, res)
}

func sortedFieldErrors(errs fundingwindow.ValidationErrors) []core.FieldError {
	flds := errs.FieldErrors()
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	return flds
}
