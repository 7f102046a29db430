package controller

import "github.com/labstack/echo/v4"

func (ctrl *controller) apiInit(e *echo.Echo) {
	api := e.Group("/api/v1")
	api.Use(ctrl.APIKeyAuthMiddleware())

	api.POST("/tokens", ctrl.apiCreateToken)
	api.DELETE("/tokens/:id", ctrl.apiRevokeToken)

	api.GET("/invoices", ctrl.apiInvoiceList)
	api.GET("/invoices/:id", ctrl.apiInvoiceGet)
	api.POST("/invoices", ctrl.apiInvoiceCreate)
	api.PUT("/invoices/:id/paid", ctrl.apiInvoicePaid)

	api.GET("/clients", ctrl.apiClientList)
	api.GET("/clients/:id", ctrl.apiClientGet)
	api.POST("/clients", ctrl.apiClientCreate)
}
