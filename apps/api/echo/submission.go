package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
)

type submissionApi struct {
	svc fundingwindow.ServiceInterface
}

func registerSubmissionAPI(g *echo.Group, svc fundingwindow.ServiceInterface) {
	api := submissionApi{svc: svc}

	sg := g.Group("/submissions")
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
}

// Handlers

func (api *submissionApi) query(ctx echo.Context) error {
	filter := fundingwindow.SubmissionFilter{
		ActorID:     ctx.QueryParam("actor_id"),
		AgreementID: ctx.QueryParam("agreement_id"),
	}
	if s := ctx.QueryParam("success"); s != "" {
		success, err := strconv.ParseBool(s)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "success", Error: "must be true or false"})
		}
		filter.Success = &success
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx, fundingwindow.SubmissionOrderFields...)

	subs, err := api.svc.QuerySubmissions(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []fundingwindow.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	sub, err := api.svc.GetSubmission(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}
