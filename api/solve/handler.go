// Package solve exposes the decomposition over HTTP.
package solve

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/unitcommit/app"
	"github.com/kilianp07/unitcommit/core/benders"
	"github.com/kilianp07/unitcommit/core/model"
)

// Solver runs one solve request.
type Solver interface {
	Solve(ctx context.Context, data *model.ProblemData, mode string) (*app.Result, error)
}

// Limits bounds accepted scenarios.
type Limits struct {
	MaxGenerators int
	MaxPeriods    int
	// Timeout bounds a single solve; zero leaves it to the solver budgets.
	Timeout time.Duration
}

// Request is the body of POST /api/v1/solve.
type Request struct {
	Mode     string             `json:"mode"`
	Scenario *model.ProblemData `json:"scenario" binding:"required"`
	// Verify checks the returned schedule against every constraint.
	Verify bool `json:"verify"`
}

// Response wraps the run result with the optional verification outcome.
type Response struct {
	*app.Result
	Verified     *bool  `json:"verified,omitempty"`
	Verification string `json:"verification_error,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Handler serves POST /api/v1/solve.
type Handler struct {
	solver Solver
	limits Limits
}

// NewHandler creates a solve handler.
func NewHandler(s Solver, limits Limits) *Handler {
	return &Handler{solver: s, limits: limits}
}

// Solve handles POST /api/v1/solve.
func (h *Handler) Solve(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: "INVALID_REQUEST", Message: err.Error()}})
		return
	}
	switch req.Mode {
	case "", benders.ModeIterative, benders.ModeEmbedded, app.ModeDirect:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: "INVALID_MODE", Message: "unknown mode " + req.Mode, Field: "mode"}})
		return
	}
	data := req.Scenario
	if h.limits.MaxGenerators > 0 && data.G() > h.limits.MaxGenerators {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: ErrorDetail{Code: "TOO_LARGE", Message: "too many generators", Field: "generators"}})
		return
	}
	if h.limits.MaxPeriods > 0 && data.T() > h.limits.MaxPeriods {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: ErrorDetail{Code: "TOO_LARGE", Message: "horizon too long", Field: "demand"}})
		return
	}

	ctx := c.Request.Context()
	if h.limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.limits.Timeout)
		defer cancel()
	}
	res, err := h.solver.Solve(ctx, data, req.Mode)
	if err != nil && !benders.IsBudgetStop(err) {
		var de *model.DataError
		var sf *benders.SolverFailure
		switch {
		case errors.As(err, &de):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: ErrorDetail{Code: "INVALID_SCENARIO", Message: de.Error(), Field: de.Field}})
		case errors.As(err, &sf):
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{Code: "SOLVER_FAILURE", Message: sf.Error()}})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: ErrorDetail{Code: "CANCELLED", Message: err.Error()}})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorDetail{Code: "INTERNAL_ERROR", Message: err.Error()}})
		}
		return
	}

	resp := Response{Result: res}
	if req.Verify && res.Schedule != nil && res.Schedule.Commitment != nil {
		ok := true
		if verr := model.CheckSchedule(data, res.Schedule, 1e-6); verr != nil {
			ok = false
			resp.Verification = verr.Error()
		}
		resp.Verified = &ok
	}
	c.JSON(http.StatusOK, resp)
}
