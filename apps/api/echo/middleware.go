package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/seta/core/fundingwindow"
)

var (
	contextFormKey = "form"

	errFormNotFoundInCtx = errors.New("form not found in echo.Context")
)

// formOwnerMiddleware loads the `:id` form into the context, for its owner only.
func formOwnerMiddleware(forms *formRegistry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getContextSession(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context session")
			}
			store, ok := forms.get(ctx.Param("id"), sess.ActorID)
			if !ok {
				return errHttpNotFound
			}
			ctx.Set(contextFormKey, store)
			return next(ctx)
		}
	}
}

func getContextForm(ctx echo.Context) (*fundingwindow.Store, error) {
	store, ok := ctx.Get(contextFormKey).(*fundingwindow.Store)
	if !ok {
		return nil, errors.Wrap(errFormNotFoundInCtx, "retrieving form from context")
	}
	return store, nil
}
