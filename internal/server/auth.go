package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"linkrewards/internal/auth"
	"linkrewards/internal/storage"
)

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleSignUp registers an account and signs the browser in.
func (s *Server) handleSignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := clientFrom(c).SignUp(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.respondError(c, authStatus(err), err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": user})
}

// handleSignIn authenticates the browser.
func (s *Server) handleSignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	user, err := clientFrom(c).SignIn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.respondError(c, authStatus(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// handleSignOut drops the session and any open dialogs.
func (s *Server) handleSignOut(c *gin.Context) {
	clientFrom(c).SignOut()
	respondSuccess(c, http.StatusOK, gin.H{"status": "signed_out"})
}

// handleMe returns the local projection of the signed-in user.
func (s *Server) handleMe(c *gin.Context) {
	user, ok := clientFrom(c).User()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"user": user})
}

// handleNotifications drains pending notifications.
func (s *Server) handleNotifications(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"notifications": clientFrom(c).Notifications()})
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrUsernameTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
