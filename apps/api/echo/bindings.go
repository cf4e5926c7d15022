package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/fee"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=field,-other`; a leading "-" sorts descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// paymentRequest is the body of the payment endpoints. PaidDate is "YYYY-MM-DD"; empty means today.
type paymentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Discount decimal.Decimal `json:"discount"`
	PaidDate string          `json:"paid_date"`
}

func (req paymentRequest) paidDate() (time.Time, error) {
	if req.PaidDate == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dateLayout, req.PaidDate)
	if err != nil {
		return time.Time{}, core.NewValidationError(err, core.FieldError{Field: "paid_date", Error: "must be a date (YYYY-MM-DD)"})
	}
	return d, nil
}

type discountRequest struct {
	Discount decimal.Decimal `json:"discount"`
}

// periodParams reads the required `month` and `year` query params.
func periodParams(ctx echo.Context) (fee.Month, int, error) {
	month := fee.Month(core.CleanString(ctx.QueryParam("month")))
	year, err := strconv.Atoi(ctx.QueryParam("year"))
	if err != nil {
		return "", 0, core.NewValidationError(errors.Wrap(err, "parsing year"), core.FieldError{Field: "year", Error: "must be a number"})
	}
	return month, year, nil
}

func sizeParam(ctx echo.Context) (int, error) {
	val := ctx.QueryParam("size")
	if val == "" {
		return 0, nil
	}
	size, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(errors.Wrap(err, "parsing size"), core.FieldError{Field: "size", Error: "must be a number"})
	}
	return size, nil
}
