package controller

import (
	"github.com/labstack/echo/v4"
)

// CookieCfgMiddleware injects a CookieCfg into the Echo context for each
// request, derived from the global app config.
func (ctrl *controller) CookieCfgMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cfg := CookieCfg{
			IsProd:       ctrl.model.Config.Mode == "production",
			ShareSubdoms: false, // set true if cookies must span subdomains
			ParentDomain: "",
		}
		c.Set("cookiecfg", cfg)
		return next(c)
	}
}
