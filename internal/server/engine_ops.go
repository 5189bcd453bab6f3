package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/namevault/namevault/internal/scheduler"
)

// RunLifecycle triggers one lifecycle sweep inline, including the milestone
// notification pass, and returns the combined summary. Stage failures land in
// the summary's errors rather than failing the request.
func (s *Server) RunLifecycle(c *gin.Context) {
	summary, err := s.engineSvc.RunLifecycle(c.Request.Context())
	if err != nil {
		summary.Errors = append(summary.Errors, scheduler.SweepError{Stage: "lifecycle", Error: err.Error()})
	}

	sent, err := s.engineSvc.RunNotifications(c.Request.Context())
	summary.NotificationsSent = sent
	if err != nil {
		summary.Errors = append(summary.Errors, scheduler.SweepError{Stage: "notifications", Error: err.Error()})
	}

	c.JSON(http.StatusOK, summary)
}

func (s *Server) RunReconciliation(c *gin.Context) {
	run, err := s.reconSvc.RunOnce(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}

func (s *Server) ListReconciliationRuns(c *gin.Context) {
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	runs, err := s.reconSvc.ListRuns(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func (s *Server) GetReconciliationRun(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	run, err := s.reconSvc.GetRun(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}

func (s *Server) ListReconciliationDiscrepancies(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	discrepancies, err := s.reconSvc.ListDiscrepancies(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": discrepancies})
}
