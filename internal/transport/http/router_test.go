package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizcat-service/internal/analysis"
	"quizcat-service/internal/app"
	"quizcat-service/internal/domain"
	"quizcat-service/internal/infra/memory"
)

const testSecret = "test-secret"

type testServer struct {
	router    *gin.Engine
	auth      *Authenticator
	ledger    *memory.Ledger
	questions map[string]domain.Question
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "2 + 2 = ?", Choices: []string{"3", "4", "5", "6"}, CorrectChoiceIndex: 1, Subject: "Math", Topic: "Addition", Grade: 4, Difficulty: domain.DifficultyEasy, Explanation: "two and two make four"},
		{ID: "q2", Text: "3 x 3 = ?", Choices: []string{"6", "9", "12", "33"}, CorrectChoiceIndex: 1, Subject: "Math", Topic: "Multiplication", Grade: 4, Difficulty: domain.DifficultyMedium},
		{ID: "q3", Text: "แมว ภาษาอังกฤษคือ?", Choices: []string{"dog", "cat", "bird", "fish"}, CorrectChoiceIndex: 1, Subject: "English", Topic: "Animals", Grade: 3, Difficulty: domain.DifficultyEasy},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	seed := sampleQuestions()
	byID := make(map[string]domain.Question, len(seed))
	for _, q := range seed {
		byID[q.ID] = q
	}
	questionRepo := memory.NewQuestionStore(seed...)
	answers := memory.NewAnswerStore()
	ledger := memory.NewLedger()
	profiles := memory.NewProfileStore()

	quiz := app.NewQuizService(app.QuizDeps{
		Sessions:  memory.NewSessionStore(),
		Questions: questionRepo,
		Answers:   answers,
		Ledger:    ledger,
	}, app.QuizConfig{})
	auth := NewAuthenticator(testSecret, "")

	router := NewRouter(RouterConfig{
		Quiz:      quiz,
		Questions: app.NewQuestionService(questionRepo, nil, nil, nil),
		Progress:  app.NewProgressService(answers, profiles, analysis.DefaultPassPolicy(), nil),
		Rewards:   app.NewRewardService(memory.NewRewardStore(), ledger, nil, []string{"admin"}, nil, nil),
		Profiles:  app.NewProfileService(profiles, ledger),
		Auth:      auth,
		Admins:    []string{"admin"},
	})
	return &testServer{router: router, auth: auth, ledger: ledger, questions: byID}
}

func (s *testServer) token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := s.auth.Issue(domain.Identity{UID: uid, Email: uid + "@example.com"}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, uid, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, uid))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthzIsPublic(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "", http.MethodGet, "/api/questions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/questions", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListQuestionsFiltersByGradeLabel(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "u1", http.MethodGet, "/api/questions?subject=math&grade=%E0%B8%9B.4", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[struct {
		Questions []domain.Question `json:"questions"`
	}](t, rec)
	assert.Len(t, out.Questions, 2)

	rec = s.do(t, "u1", http.MethodGet, "/api/questions?grade=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionFlowAwardsPointsOnce(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "u1", http.MethodPost, "/api/sessions", map[string]any{"subject": "Math", "limit": 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode[app.SessionView](t, rec)
	require.Equal(t, 1, view.Total)
	require.NotNil(t, view.Question)

	base := "/api/sessions/" + view.SessionID
	correct := s.questions[view.Question.ID].CorrectChoiceIndex

	rec = s.do(t, "u2", http.MethodGet, base, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "u1", http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "submit without a selection")

	rec = s.do(t, "u1", http.MethodPost, base+"/select", map[string]any{"choice": correct})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, "u1", http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[app.SubmitResult](t, rec)
	assert.True(t, res.Record.IsCorrect)
	assert.Equal(t, domain.PointsPerCorrect, res.Awarded)
	assert.Equal(t, domain.PointsPerCorrect, res.Balance)

	rec = s.do(t, "u1", http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, "u1", http.MethodGet, base+"/result", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "result before finishing")

	rec = s.do(t, "u1", http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[app.SessionView](t, rec).Finished)

	rec = s.do(t, "u1", http.MethodGet, base+"/result", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[app.SessionResult](t, rec)
	assert.Equal(t, 1, result.Correct)
	assert.Equal(t, 10, result.Score)

	rec = s.do(t, "u1", http.MethodGet, "/api/points", nil)
	assert.JSONEq(t, `{"balance":10}`, rec.Body.String())

	rec = s.do(t, "u1", http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, "u1", http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "u1", http.MethodGet, "/api/answers", nil)
	answers := decode[struct {
		Answers []domain.AnswerRecord `json:"answers"`
	}](t, rec)
	require.Len(t, answers.Answers, 1)

	rec = s.do(t, "u1", http.MethodGet, "/api/analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[app.ProgressReport](t, rec)
	assert.Equal(t, 1, report.Insights.Answered)
}

func TestStartWithEmptyPool(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "u1", http.MethodPost, "/api/sessions", map[string]any{"subject": "History"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestQuestionWritesAreAdminOnly(t *testing.T) {
	s := newTestServer(t)
	q := map[string]any{
		"text":               "5 - 2 = ?",
		"choices":            []string{"1", "2", "3", "4"},
		"correctChoiceIndex": 2,
		"subject":            "Math",
		"topic":              "Subtraction",
		"grade":              "ป.2",
	}

	rec := s.do(t, "u1", http.MethodPost, "/api/questions", q)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "admin", http.MethodPost, "/api/questions", q)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[domain.Question](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.Grade(2), created.Grade)

	q["choices"] = []string{"1", "", "3", "4"}
	rec = s.do(t, "admin", http.MethodPost, "/api/questions", q)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "u1", http.MethodGet, "/api/questions/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cat := decode[domain.Catalog](t, rec)
	assert.Contains(t, cat.Topics, "Subtraction")

	rec = s.do(t, "admin", http.MethodDelete, "/api/questions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, "u1", http.MethodGet, "/api/questions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportCSVReportsRejectedRows(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("subject", "Science"))
	require.NoError(t, mw.WriteField("grade", "5"))
	fw, err := mw.CreateFormFile("file", "questions.csv")
	require.NoError(t, err)
	_, err = fmt.Fprint(fw, strings.Join([]string{
		"question,choice1,choice2,choice3,choice4,correctIndex,explanation",
		"Water boils at?,50,75,100,125,3,at sea level",
		"Broken row,a,,c,d,1,",
	}, "\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/questions/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token(t, "admin"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report struct {
		Imported int `json:"imported"`
		Rejected []struct {
			Index int `json:"index"`
		} `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Imported)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, 2, report.Rejected[0].Index)
}

func TestGenerateWithoutGeneratorIsUnavailable(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, "admin", http.MethodPost, "/api/questions/generate", map[string]any{"prompt": "fractions", "count": 3})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRedeemRequiresBalance(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "admin", http.MethodPost, "/api/rewards", map[string]any{"name": "Sticker", "costInPoints": 20})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reward := decode[domain.Reward](t, rec)

	_, err := s.ledger.Award(context.Background(), "u1", 15)
	require.NoError(t, err)

	rec = s.do(t, "u1", http.MethodPost, "/api/rewards/"+reward.ID+"/redeem", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	_, err = s.ledger.Award(context.Background(), "u1", 5)
	require.NoError(t, err)
	rec = s.do(t, "u1", http.MethodPost, "/api/rewards/"+reward.ID+"/redeem", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["balance"])

	rec = s.do(t, "u1", http.MethodGet, "/api/rewards/claims", nil)
	claims := decode[struct {
		Claims []domain.RewardClaim `json:"claims"`
	}](t, rec)
	assert.Len(t, claims.Claims, 1)

	rec = s.do(t, "u1", http.MethodDelete, "/api/rewards/"+reward.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProfileDefaultsAndUpdate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "u1", http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[domain.UserProfile](t, rec)
	assert.Equal(t, "u1", p.Name)
	assert.Equal(t, domain.ThemeSystem, p.ThemePreference)

	rec = s.do(t, "u1", http.MethodPatch, "/api/profile", map[string]any{"grade": "ป.6", "themePreference": "dark"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p = decode[domain.UserProfile](t, rec)
	assert.Equal(t, domain.Grade(6), p.Grade)
	assert.Equal(t, domain.ThemeDark, p.ThemePreference)

	rec = s.do(t, "u1", http.MethodPatch, "/api/profile", map[string]any{"themePreference": "neon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
