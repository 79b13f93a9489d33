package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quizcat-service/internal/app"
	"quizcat-service/internal/domain"
)

type startRequest struct {
	Subject    string `json:"subject"`
	Topic      string `json:"topic"`
	Grade      string `json:"grade"`
	Difficulty string `json:"difficulty"`
	Limit      int    `json:"limit"`
	Practice   bool   `json:"practice"`
	// Pointers distinguish "use the server default" from an explicit false/zero.
	RequireConfidence *bool `json:"requireConfidence"`
	TimeoutSeconds    *int  `json:"timeoutSeconds"`
}

func (r startRequest) filter() (domain.QuestionFilter, error) {
	grade, err := domain.ParseGrade(r.Grade)
	if err != nil {
		return domain.QuestionFilter{}, err
	}
	difficulty, err := domain.ParseDifficulty(r.Difficulty)
	if err != nil {
		return domain.QuestionFilter{}, err
	}
	if r.Limit < 0 {
		return domain.QuestionFilter{}, fmt.Errorf("%w: limit must be non-negative", errBadRequest)
	}
	return domain.QuestionFilter{
		Subject:    r.Subject,
		Topic:      r.Topic,
		Grade:      grade,
		Difficulty: difficulty,
		Limit:      r.Limit,
	}, nil
}

func (r startRequest) options() (app.StartOptions, error) {
	opts := app.StartOptions{Practice: r.Practice, RequireConfidence: r.RequireConfidence}
	if r.TimeoutSeconds != nil {
		if *r.TimeoutSeconds < 0 {
			return opts, fmt.Errorf("%w: timeoutSeconds must be non-negative", errBadRequest)
		}
		d := time.Duration(*r.TimeoutSeconds) * time.Second
		opts.QuestionTimeout = &d
	}
	return opts, nil
}

func (h *handlers) startSession(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req startRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	filter, err := req.filter()
	if err != nil {
		respondError(c, err)
		return
	}
	opts, err := req.options()
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := h.cfg.Quiz.Start(c.Request.Context(), id.UID, filter, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// sessionCall runs fn for the caller on the :id session and writes its result.
func sessionCall[T any](c *gin.Context, fn func(userID, sessionID string) (T, error)) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	out, err := fn(id.UID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) viewSession(c *gin.Context) {
	sessionCall(c, func(uid, sid string) (app.SessionView, error) {
		return h.cfg.Quiz.View(c.Request.Context(), uid, sid)
	})
}

func (h *handlers) selectChoice(c *gin.Context) {
	var req struct {
		Choice *int `json:"choice" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	sessionCall(c, func(uid, sid string) (app.SessionView, error) {
		return h.cfg.Quiz.Select(c.Request.Context(), uid, sid, *req.Choice)
	})
}

func (h *handlers) setConfidence(c *gin.Context) {
	var req struct {
		Level domain.ConfidenceLevel `json:"level" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	sessionCall(c, func(uid, sid string) (app.SessionView, error) {
		return h.cfg.Quiz.SetConfidence(c.Request.Context(), uid, sid, req.Level)
	})
}

func (h *handlers) submit(c *gin.Context) {
	sessionCall(c, func(uid, sid string) (app.SubmitResult, error) {
		return h.cfg.Quiz.Submit(c.Request.Context(), uid, sid)
	})
}

func (h *handlers) skip(c *gin.Context) {
	sessionCall(c, func(uid, sid string) (app.SessionView, error) {
		return h.cfg.Quiz.Skip(c.Request.Context(), uid, sid)
	})
}

func (h *handlers) advance(c *gin.Context) {
	sessionCall(c, func(uid, sid string) (app.SessionView, error) {
		return h.cfg.Quiz.Advance(c.Request.Context(), uid, sid)
	})
}

func (h *handlers) result(c *gin.Context) {
	sessionCall(c, func(uid, sid string) (app.SessionResult, error) {
		return h.cfg.Quiz.Result(c.Request.Context(), uid, sid)
	})
}

func (h *handlers) abandon(c *gin.Context) {
	id, err := identity(c)
	if err != nil {
		respondError(c, err)
		return
	}
	h.cfg.Quiz.Abandon(c.Request.Context(), id.UID, c.Param("id"))
	c.Status(http.StatusNoContent)
}
