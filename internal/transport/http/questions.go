package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quizcat-service/internal/domain"
	"quizcat-service/internal/questionbank"
)

// maxImportBytes bounds uploaded CSV files.
const maxImportBytes = 5 << 20

// filterFromQuery reads subject, topic, grade, difficulty and limit.
func filterFromQuery(c *gin.Context) (domain.QuestionFilter, error) {
	grade, err := domain.ParseGrade(c.Query("grade"))
	if err != nil {
		return domain.QuestionFilter{}, err
	}
	difficulty, err := domain.ParseDifficulty(c.Query("difficulty"))
	if err != nil {
		return domain.QuestionFilter{}, err
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return domain.QuestionFilter{}, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest)
		}
	}
	return domain.QuestionFilter{
		Subject:    c.Query("subject"),
		Topic:      c.Query("topic"),
		Grade:      grade,
		Difficulty: difficulty,
		Limit:      limit,
	}, nil
}

func defaultsFrom(subject, topic, grade, difficulty string) (questionbank.Defaults, error) {
	g, err := domain.ParseGrade(grade)
	if err != nil {
		return questionbank.Defaults{}, err
	}
	d, err := domain.ParseDifficulty(difficulty)
	if err != nil {
		return questionbank.Defaults{}, err
	}
	return questionbank.Defaults{Subject: subject, Topic: topic, Grade: g, Difficulty: d}, nil
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return false
	}
	return true
}

func (h *handlers) listQuestions(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		respondError(c, err)
		return
	}
	qs, err := h.cfg.Questions.Find(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": qs})
}

func (h *handlers) catalog(c *gin.Context) {
	cat, err := h.cfg.Questions.Catalog(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *handlers) getQuestion(c *gin.Context) {
	q, err := h.cfg.Questions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handlers) createQuestion(c *gin.Context) {
	var q domain.Question
	if !bindJSON(c, &q) {
		return
	}
	q.ID = ""
	created, err := h.cfg.Questions.Create(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *handlers) updateQuestion(c *gin.Context) {
	var q domain.Question
	if !bindJSON(c, &q) {
		return
	}
	q.ID = c.Param("id")
	updated, err := h.cfg.Questions.Update(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *handlers) deleteQuestion(c *gin.Context) {
	if err := h.cfg.Questions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// importCSV accepts a multipart upload in the "file" field. Classification
// defaults come from form fields of the same names as the query filters.
func (h *handlers) importCSV(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		respondError(c, fmt.Errorf("%w: missing csv file: %v", errBadRequest, err))
		return
	}
	defaults, err := defaultsFrom(c.PostForm("subject"), c.PostForm("topic"), c.PostForm("grade"), c.PostForm("difficulty"))
	if err != nil {
		respondError(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	report, err := h.cfg.Questions.ImportCSV(c.Request.Context(), f, defaults)
	if err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	c.JSON(http.StatusOK, report)
}

type generateRequest struct {
	Prompt     string `json:"prompt" binding:"required"`
	Count      int    `json:"count"`
	Subject    string `json:"subject"`
	Topic      string `json:"topic"`
	Grade      string `json:"grade"`
	Difficulty string `json:"difficulty"`
}

// generateQuestions returns a preview; nothing is stored until the client posts to /generated.
func (h *handlers) generateQuestions(c *gin.Context) {
	var req generateRequest
	if !bindJSON(c, &req) {
		return
	}
	defaults, err := defaultsFrom(req.Subject, req.Topic, req.Grade, req.Difficulty)
	if err != nil {
		respondError(c, err)
		return
	}
	batch, err := h.cfg.Questions.Generate(c.Request.Context(), questionbank.GenerateRequest{
		Prompt:   req.Prompt,
		Count:    req.Count,
		Defaults: defaults,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *handlers) saveGenerated(c *gin.Context) {
	var req struct {
		Questions []domain.Question `json:"questions" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	report, err := h.cfg.Questions.SaveGenerated(c.Request.Context(), req.Questions)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
