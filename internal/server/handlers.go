package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/returns"
)

type healthResponse struct {
	Status     string         `json:"status"`
	Components map[string]any `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := healthResponse{Status: "healthy", Components: make(map[string]any)}

	if err := s.store.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Components["warehouse"] = map[string]string{
			"status": "disconnected",
			"error":  err.Error(),
		}
	} else {
		health.Components["warehouse"] = "connected"
	}

	if s.partitions != nil {
		latest, err := s.partitions.LatestMonth()
		switch {
		case err != nil:
			health.Components["partitions"] = map[string]string{"error": err.Error()}
		case latest == nil:
			health.Components["partitions"] = map[string]any{"latest_month": nil}
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		default:
			health.Components["partitions"] = map[string]string{"latest_month": latest.String()}
		}
	}

	if health.Status == "unhealthy" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, health)
}

type errorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func (s *Server) handleReturns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var problems []string
	start, err := parseDateParam(q.Get("start"))
	if err != nil {
		problems = append(problems, "start must be YYYY-MM-DD")
	}
	end, err := parseDateParam(q.Get("end"))
	if err != nil {
		problems = append(problems, "end must be YYYY-MM-DD")
	}
	if len(problems) > 0 {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "invalid request", Problems: problems})
		return
	}

	res, err := s.engine.Compute(r.Context(), returns.Request{
		EntityKeys: q["entity"],
		Start:      start,
		End:        end,
		Benchmark:  q.Get("benchmark"),
	})
	if err != nil {
		var vErr *returns.ValidationError
		if errors.As(err, &vErr) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "invalid request", Problems: vErr.Problems})
			return
		}
		s.logger.ErrorContext(r.Context(), "aggregation failed", "err", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: "aggregation failed"})
		return
	}

	render.JSON(w, r, newResultResponse(res))
}

// parseDateParam accepts an empty value as the zero time so the engine's
// validation reports it as missing.
func parseDateParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return model.ParseDate(v)
}
