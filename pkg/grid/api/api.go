// Package api serves states of grid jobs over http.
//
//	GET /api/jobs?status=failed,running   list jobs, oldest first
//	GET /api/jobs/summary                 count jobs by status
//	GET /api/jobs/:jobId                  a job
//	GET /api/health
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	apierr "github.com/pombredanne/facereclib/pkg/api/types/errors"
	"github.com/pombredanne/facereclib/pkg/api/types/jobs"
	pgerrors "github.com/pombredanne/facereclib/pkg/db/postgres/errors"
	"github.com/pombredanne/facereclib/pkg/grid"
	"github.com/pombredanne/facereclib/pkg/utils/echoutil"
)

// Jobs is the part of pkg/grid/postgres.Queue read by the api.
type Jobs interface {
	Get(ctx context.Context, id grid.JobID) (grid.Job, error)
	List(ctx context.Context, statuses ...grid.Status) ([]grid.Job, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

func ListHandler(q Jobs) echo.HandlerFunc {
	return func(c echo.Context) error {
		statuses := []grid.Status{}
		if param := c.QueryParam("status"); param != "" {
			for _, s := range strings.Split(param, ",") {
				st, err := grid.AsStatus(strings.TrimSpace(s))
				if err != nil {
					return apierr.BadRequest("status should be one of pending, starting, running, done, failed or invalidated", err)
				}
				statuses = append(statuses, st)
			}
		}

		found, err := q.List(c.Request().Context(), statuses...)
		if err != nil {
			return apierr.InternalServerError(err)
		}
		resp := make([]jobs.Summary, len(found))
		for i, j := range found {
			resp[i] = jobs.ComposeSummary(j)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func SummaryHandler(q Jobs) echo.HandlerFunc {
	return func(c echo.Context) error {
		found, err := q.List(c.Request().Context())
		if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, jobs.Count(found))
	}
}

func GetHandler(q Jobs, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		j, err := q.Get(c.Request().Context(), grid.JobID(c.Param(param)))
		if errors.Is(err, pgerrors.ErrMissing) {
			return apierr.NotFound()
		} else if err != nil {
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, jobs.ComposeSummary(j))
	}
}

func HealthHandler(p Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := p.Ping(c.Request().Context()); err != nil {
			return apierr.InternalServerError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// New builds the echo server of the api.
func New(q Jobs, p Pinger, loglevel string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	echoutil.SetLevel(e, loglevel)
	e.Use(echoutil.LogHandlerFunc)

	e.GET("/api/jobs", ListHandler(q))
	e.GET("/api/jobs/summary", SummaryHandler(q))
	e.GET("/api/jobs/:jobId", GetHandler(q, "jobId"))
	e.GET("/api/health", HealthHandler(p))
	return e
}
