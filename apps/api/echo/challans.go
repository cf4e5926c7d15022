package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core/fee"
)

type challanApi struct {
	svc fee.Service
}

func registerChallanAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc fee.Service) {
	api := challanApi{svc: svc}

	cg := g.Group("/challans", jwt)
	cg.GET("", api.query)
	cg.GET("/summary", api.summary)
	cg.POST("/generate", api.generate, staffOnly(roleBursar))

	// detail endpoints
	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.GET("/qr", api.qrCode)
	dg.POST("/record-payment", api.recordPayment, staffOnly(roleAccountant, roleBursar))
	dg.POST("/payments", api.applyPayment, staffOnly(roleAccountant, roleBursar))
	dg.PUT("/discount", api.setDiscount, staffOnly(roleBursar))
}

// Handlers

func (api *challanApi) generate(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	var data fee.GenerateChallans
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateChallans")
	}

	res, err := api.svc.GenerateChallansForMonth(ctx.Request().Context(), schoolID, data.Month, data.Year, data.SelectedFeeHeads)
	if err != nil {
		return errors.Wrap(err, "generating challans")
	}
	code := http.StatusOK
	if res.Created > 0 {
		code = http.StatusCreated
	}
	return ctx.JSON(code, res)
}

func (api *challanApi) query(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	var filter fee.ChallanFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to ChallanFilter")
	}
	filter.SchoolID = schoolID
	var ord Ordering
	ord.Bind(ctx)

	challans, err := api.svc.QueryChallans(ctx.Request().Context(), filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying challans")
	}
	return ctx.JSON(http.StatusOK, challans)
}

func (api *challanApi) summary(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	month, year, err := periodParams(ctx)
	if err != nil {
		return err
	}

	sum, err := api.svc.CollectionSummary(ctx.Request().Context(), schoolID, month, year)
	if err != nil {
		return errors.Wrap(err, "summarizing collection")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *challanApi) retrieve(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	chl, err := api.svc.GetChallan(ctx.Request().Context(), schoolID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting challan")
	}
	return ctx.JSON(http.StatusOK, chl)
}

func (api *challanApi) qrCode(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	size, err := sizeParam(ctx)
	if err != nil {
		return err
	}

	png, err := api.svc.ChallanQRCode(ctx.Request().Context(), schoolID, ctx.Param("id"), size)
	if err != nil {
		return errors.Wrap(err, "generating challan QR code")
	}
	return ctx.Blob(http.StatusOK, "image/png", png)
}

func (api *challanApi) recordPayment(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	var data paymentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to paymentRequest")
	}
	paidDate, err := data.paidDate()
	if err != nil {
		return err
	}

	chl, err := api.svc.RecordFeePayment(ctx.Request().Context(), schoolID, ctx.Param("id"), fee.RecordPayment{
		Amount:   data.Amount,
		Discount: data.Discount,
		PaidDate: paidDate,
	})
	if err != nil {
		return errors.Wrap(err, "recording fee payment")
	}
	return ctx.JSON(http.StatusOK, chl)
}

func (api *challanApi) applyPayment(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	var data paymentRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to paymentRequest")
	}
	paidDate, err := data.paidDate()
	if err != nil {
		return err
	}

	chl, err := api.svc.ApplyPayment(ctx.Request().Context(), schoolID, ctx.Param("id"), fee.ApplyPayment{
		Amount:   data.Amount,
		PaidDate: paidDate,
	})
	if err != nil {
		return errors.Wrap(err, "applying payment")
	}
	return ctx.JSON(http.StatusOK, chl)
}

func (api *challanApi) setDiscount(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	var data discountRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to discountRequest")
	}

	chl, err := api.svc.SetDiscount(ctx.Request().Context(), schoolID, ctx.Param("id"), fee.SetDiscount{Discount: data.Discount})
	if err != nil {
		return errors.Wrap(err, "setting discount")
	}
	return ctx.JSON(http.StatusOK, chl)
}
