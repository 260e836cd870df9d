package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"linkrewards/internal/app"
	"linkrewards/internal/verify"
)

// handleBoard returns the loaded catalog grouped by section.
func (s *Server) handleBoard(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"sections": clientFrom(c).Board()})
}

// handleRefreshBoard re-fetches the catalog from the backend.
func (s *Server) handleRefreshBoard(c *gin.Context) {
	client := clientFrom(c)
	client.RefreshTasks(c.Request.Context())
	respondSuccess(c, http.StatusOK, gin.H{"sections": client.Board()})
}

// handleOpenTask shows the detail view of a task.
func (s *Server) handleOpenTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	detail, err := clientFrom(c).OpenTask(id)
	if err != nil {
		s.respondError(c, flowStatus(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"detail": detail})
}

// handleGetDetail reports the state of the open detail view.
func (s *Server) handleGetDetail(c *gin.Context) {
	detail, err := clientFrom(c).Detail()
	if err != nil {
		s.respondError(c, flowStatus(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"detail": detail.Snapshot()})
}

// handleVerify starts the scripted verification of the open task.
func (s *Server) handleVerify(c *gin.Context) {
	detail, err := clientFrom(c).Detail()
	if err != nil {
		s.respondError(c, flowStatus(err), err)
		return
	}
	if err := detail.Verify(); err != nil {
		s.respondError(c, flowStatus(err), err)
		return
	}
	respondSuccess(c, http.StatusAccepted, gin.H{"detail": detail.Snapshot()})
}

// handleCloseDetail discards the detail view.
func (s *Server) handleCloseDetail(c *gin.Context) {
	clientFrom(c).CloseDetail()
	respondSuccess(c, http.StatusNoContent, nil)
}

func flowStatus(err error) int {
	switch {
	case errors.Is(err, app.ErrSignedOut):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrTaskNotFound), errors.Is(err, app.ErrNoDetail), errors.Is(err, app.ErrNoRewards):
		return http.StatusNotFound
	case errors.Is(err, verify.ErrBusy), errors.Is(err, verify.ErrClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
