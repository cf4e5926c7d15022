package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-fees/core/fee"
)

type feeHeadApi struct {
	svc fee.Service
}

func registerFeeHeadAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc fee.Service) {
	api := feeHeadApi{svc: svc}

	fg := g.Group("/fee-heads", jwt)
	fg.GET("", api.query)
	fg.POST("", api.create, staffOnly(roleBursar))

	dg := fg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffOnly(roleBursar))
	dg.DELETE("", api.destroy, staffOnly(roleBursar))
}

// Handlers

func (api *feeHeadApi) query(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	heads, err := api.svc.QueryFeeHeads(ctx.Request().Context(), schoolID)
	if err != nil {
		return errors.Wrap(err, "querying fee heads")
	}
	return ctx.JSON(http.StatusOK, heads)
}

func (api *feeHeadApi) create(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	var data fee.NewFeeHead
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeeHead")
	}

	head, err := api.svc.CreateFeeHead(ctx.Request().Context(), schoolID, data)
	if err != nil {
		return errors.Wrap(err, "creating fee head")
	}
	return ctx.JSON(http.StatusCreated, head)
}

func (api *feeHeadApi) retrieve(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	head, err := api.svc.GetFeeHead(ctx.Request().Context(), schoolID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fee head")
	}
	return ctx.JSON(http.StatusOK, head)
}

func (api *feeHeadApi) update(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	var data fee.UpdateFeeHead
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFeeHead")
	}

	head, err := api.svc.UpdateFeeHead(ctx.Request().Context(), schoolID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating fee head")
	}
	return ctx.JSON(http.StatusOK, head)
}

func (api *feeHeadApi) destroy(ctx echo.Context) error {
	schoolID, err := contextSchoolID(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteFeeHead(ctx.Request().Context(), schoolID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting fee head")
	}
	return ctx.NoContent(http.StatusNoContent)
}
