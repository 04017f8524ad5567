package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/seta/core/student"
)

type studentApi struct {
	svc student.ServiceInterface
}

func registerStudentAPI(g *echo.Group, svc student.ServiceInterface) {
	api := studentApi{svc: svc}
	g.GET("/students", api.query)
}

func (api *studentApi) query(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context session")
	}

	filter := new(student.Filter)
	if err = ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to student.Filter")
	}
	pg := new(student.Pagination)
	if err = ctx.Bind(pg); err != nil {
		return errors.Wrap(err, "binding to student.Pagination")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, student.OrderFields...)

	page, err := api.svc.List(ctx.Request().Context(), sess, *filter, ordering.Orderings, *pg)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	return ctx.JSON(http.StatusOK, page)
}
