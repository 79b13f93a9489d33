package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quizcat-service/internal/app"
	"quizcat-service/internal/domain"
)

func (h *handlers) listAnswers(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	records, err := h.cfg.Progress.Answers(c.Request.Context(), id.UID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answers": records})
}

func (h *handlers) deleteAnswer(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.cfg.Progress.DeleteAnswer(c.Request.Context(), id.UID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) report(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	report, err := h.cfg.Progress.Report(c.Request.Context(), id.UID, app.ReportFilter{
		SessionID: c.Query("sessionId"),
		Subject:   c.Query("subject"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *handlers) getProfile(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := h.cfg.Profiles.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) updateProfile(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var u app.ProfileUpdate
	if !bindJSON(c, &u) {
		return
	}
	p, err := h.cfg.Profiles.Update(c.Request.Context(), id, u)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) balance(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	points, err := h.cfg.Rewards.Balance(c.Request.Context(), id.UID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": points})
}

func (h *handlers) listRewards(c *gin.Context) {
	rewards, err := h.cfg.Rewards.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rewards": rewards})
}

type rewardRequest struct {
	Name         string     `json:"name"`
	CostInPoints int        `json:"costInPoints"`
	ImageURL     string     `json:"imageUrl"`
	Description  string     `json:"description"`
	ExpiresAt    *time.Time `json:"expiresAt"`
}

func (h *handlers) createReward(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req rewardRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.cfg.Rewards.Create(c.Request.Context(), id.UID, domain.Reward{
		Name:         req.Name,
		CostInPoints: req.CostInPoints,
		ImageURL:     req.ImageURL,
		Description:  req.Description,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *handlers) deleteReward(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.cfg.Rewards.Delete(c.Request.Context(), id.UID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) redeem(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	claim, balance, err := h.cfg.Rewards.Redeem(c.Request.Context(), id.UID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claim": claim, "balance": balance})
}

func (h *handlers) claims(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	claims, err := h.cfg.Rewards.Claims(c.Request.Context(), id.UID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims})
}
