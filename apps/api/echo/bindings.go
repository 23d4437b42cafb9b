package echoapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// intQueryParam parses the query param name, falling back to def when absent or malformed.
func intQueryParam(ctx echo.Context, name string, def int) int {
	if v, err := strconv.Atoi(ctx.QueryParam(name)); err == nil {
		return v
	}
	return def
}

// bindErrorField turns a JSON type mismatch on field into a validation error.
func bindErrorField(err error, field, msg string) error {
	if herr, ok := err.(*echo.HTTPError); ok {
		if terr, ok := herr.Internal.(*json.UnmarshalTypeError); ok && terr.Field == field {
			return core.NewValidationError(terr, core.FieldError{Field: field, Error: msg})
		}
	}
	return errors.Wrap(err, "binding request")
}
