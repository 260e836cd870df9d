package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"linkrewards/internal/rewards"
)

type redeemRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// handleGetRewards lists the tiers of the open cash-out dialog.
func (s *Server) handleGetRewards(c *gin.Context) {
	flow, err := clientFrom(c).Rewards()
	if err != nil {
		s.respondError(c, flowStatus(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"points": flow.Balance(), "tiers": flow.Options()})
}

// handleOpenRewards opens the cash-out dialog.
func (s *Server) handleOpenRewards(c *gin.Context) {
	flow, err := clientFrom(c).OpenRewards()
	if err != nil {
		s.respondError(c, flowStatus(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"points": flow.Balance(), "tiers": flow.Options()})
}

// handleRedeem submits a cash-out request for one tier.
func (s *Server) handleRedeem(c *gin.Context) {
	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	client := clientFrom(c)
	if err := client.Redeem(c.Request.Context(), req.Amount); err != nil {
		s.respondError(c, redeemStatus(err), err)
		return
	}
	user, _ := client.User()
	respondSuccess(c, http.StatusOK, gin.H{"status": "submitted", "amount": req.Amount, "points": user.Points})
}

// handleCloseRewards dismisses the cash-out dialog.
func (s *Server) handleCloseRewards(c *gin.Context) {
	clientFrom(c).CloseRewards()
	respondSuccess(c, http.StatusNoContent, nil)
}

func redeemStatus(err error) int {
	switch {
	case errors.Is(err, rewards.ErrUnknownTier):
		return http.StatusBadRequest
	case errors.Is(err, rewards.ErrInsufficientPoints):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rewards.ErrClosed):
		return http.StatusConflict
	default:
		return flowStatus(err)
	}
}
