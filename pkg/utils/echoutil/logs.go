// Package echoutil holds middlewares shared by echo servers.
package echoutil

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pombredanne/facereclib/pkg/logger"
)

// LogHandlerFunc logs each request and its response.
func LogHandlerFunc(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		begin := time.Now()
		c.Logger().Infof("< %s %s", req.Method, req.URL)

		err := next(c)

		c.Logger().Infof(
			"> %s %s: status = %d in %v / error = %v",
			req.Method, req.URL, c.Response().Status, time.Since(begin), err,
		)
		return err
	}
}

// SetLevel sets the level of e's logger by name. Unknown names fall back to info.
func SetLevel(e *echo.Echo, loglevel string) {
	lvl, ok := logger.ParseLevel(loglevel)
	e.Logger.SetLevel(lvl)
	if !ok {
		e.Logger.Warnf("unknown loglevel: %s. fall back to info", loglevel)
	}
}
