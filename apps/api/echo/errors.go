package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
)

var (
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// statusOf maps domain sentinel errors to their http status.
func statusOf(err error) (int, bool) {
	switch {
	case errors.Is(err, fundingwindow.ErrNotFound), errors.Is(err, fundingwindow.ErrProgrammeNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, fundingwindow.ErrLastProgramme),
		errors.Is(err, fundingwindow.ErrSubmitInProgress),
		errors.Is(err, fundingwindow.ErrAlreadySubmitted):
		return http.StatusConflict, true
	case errors.Is(err, fundingwindow.ErrUnknownField):
		return http.StatusBadRequest, true
	case errors.Is(err, core.ErrSessionExpired):
		return http.StatusUnauthorized, true
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if status, ok := statusOf(err); ok {
			code = status
			message = errors.Cause(err).Error()
		} else {
			switch origErr := errors.Cause(err).(type) {
			case *echo.HTTPError:
				if origErr == middleware.ErrJWTMissing {
					code = http.StatusUnauthorized
					message = origErr.Message
					break
				}
				if origErr.Internal != nil {
					if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
						origErr = herr
					}
				}
				code = origErr.Code
				message = origErr.Message
			case validator.ValidationErrors:
				fldErrs := make(map[string]string, len(origErr))
				for _, vErr := range origErr {
					fldErrs[vErr.Field()] = vErr.Translate(translator)
				}
				code = http.StatusBadRequest
				message = fldErrs
			case *fundingwindow.RemoteError:
				code = http.StatusBadGateway
				message = origErr.Error()
			case *core.ValidationError:
				if len(origErr.Fields) > 0 {
					message = origErr.FieldMap()
				} else {
					message = origErr.Error()
				}
				code = http.StatusBadRequest
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				sess, _ := getContextSession(ctx)
				logger.Error(msg, errors.Wrap(err, msg), sess)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
