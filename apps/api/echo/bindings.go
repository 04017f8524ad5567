package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/seta/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=field,-other`, keeping only the allowed fields.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	ord.Orderings = core.ParseOrderings(val, allowed...)
}

// bindJSONObject decodes the request body as a JSON object.
// Path and query params are left out, unlike echo.Context.Bind on a map.
func bindJSONObject(ctx echo.Context) (map[string]interface{}, error) {
	data := make(map[string]interface{})
	if ctx.Request().ContentLength == 0 {
		return data, nil
	}
	if err := json.NewDecoder(ctx.Request().Body).Decode(&data); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object").SetInternal(err)
	}
	return data, nil
}

// formValue turns a JSON scalar into the raw string kept by the form.
func formValue(field string, v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	}
	return "", core.NewValidationError(nil, core.FieldError{Field: field, Error: fmt.Sprintf("unsupported value %v", v)})
}

// formList turns a JSON array of scalars into strings.
func formList(field string, v interface{}) ([]string, error) {
	if v == nil {
		return []string{}, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, core.NewValidationError(nil, core.FieldError{Field: field, Error: "must be a list"})
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := formValue(field, item)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
