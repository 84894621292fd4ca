package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/bryanwahyu/learncode/internal/application"
	appanalysis "github.com/bryanwahyu/learncode/internal/application/analysis"
	appexplain "github.com/bryanwahyu/learncode/internal/application/explanation"
	"github.com/bryanwahyu/learncode/internal/application/identity"
	"github.com/bryanwahyu/learncode/internal/domain/ai"
	"github.com/bryanwahyu/learncode/internal/infra/db"
	"github.com/bryanwahyu/learncode/internal/infra/db/sqlite"
	"github.com/bryanwahyu/learncode/internal/middleware"
)

const federationKey = "fed-key"

type scriptedAI struct {
	roadmap    string
	roadmapErr error
	explainErr error
	explains   int
}

func (f *scriptedAI) GenerateRoadmap(context.Context, string) (string, error) {
	return f.roadmap, f.roadmapErr
}

func (f *scriptedAI) ExplainTopic(_ context.Context, p ai.TopicPrompt) (string, error) {
	f.explains++
	if f.explainErr != nil {
		return "", f.explainErr
	}
	return p.Topic + " explained for " + p.Language, nil
}

type RouterSuite struct {
	suite.Suite
	srv   *httptest.Server
	ai    *scriptedAI
	token string
	other string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	ctx := context.Background()
	conn, err := sqlite.Connect(ctx, ":memory:")
	s.Require().NoError(err)
	s.T().Cleanup(func() { conn.Close() })
	pool := db.Fixed{DB: conn}

	s.ai = &scriptedAI{roadmap: `{"title":"Todo app","language":"JavaScript","framework":"React",` +
		`"learningPath":"Level 1: Basics\n- JSX\nLevel 2: State\n- useState\nLevel 3: Effects\n- useEffect"}`}
	clock := application.SystemClock{}
	analyses := sqlite.NewAnalysisRepository(pool)
	analysisSvc := &appanalysis.Service{Repo: analyses, AI: s.ai, Clock: clock}
	explainSvc := &appexplain.Service{
		Analyses: analyses,
		Cache:    sqlite.NewExplanationRepository(pool),
		AI:       s.ai,
		Clock:    clock,
	}
	identitySvc := identity.NewService(sqlite.NewUserRepository(pool), "jwt-secret", time.Hour, clock)

	s.srv = httptest.NewServer(NewRouter(analysisSvc, explainSvc, identitySvc, Options{
		FederationKey:  federationKey,
		HealthCheckers: map[string]middleware.HealthChecker{"database": db.NewLazy(func(context.Context) (*sql.DB, error) { return conn, nil })},
	}))
	s.T().Cleanup(s.srv.Close)

	s.token = s.signIn("ada@example.com", "g-ada")
	s.other = s.signIn("bob@example.com", "g-bob")
}

func (s *RouterSuite) do(method, path, token string, body any, out any) int {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			s.Require().NoError(json.NewEncoder(&buf).Encode(b))
		}
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *RouterSuite) signIn(email, subject string) string {
	body, _ := json.Marshal(map[string]string{"provider": "google", "subject": subject, "email": email})
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/v1/auth/session", bytes.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("X-Federation-Key", federationKey)
	resp, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var sess struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&sess))
	s.Require().NotEmpty(sess.Token)
	return sess.Token
}

func (s *RouterSuite) analyze() string {
	var res struct {
		ID string `json:"id"`
	}
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/v1/analyze", s.token, map[string]string{"code": "const x = 1"}, &res))
	s.Require().NotEmpty(res.ID)
	return res.ID
}

func (s *RouterSuite) TestSignInRequiresFederationKey() {
	var body map[string]string
	code := s.do(http.MethodPost, "/v1/auth/session", "", map[string]string{"subject": "x", "email": "x@y.z"}, &body)
	s.Equal(http.StatusUnauthorized, code)
	s.NotEmpty(body["error"])
}

func (s *RouterSuite) TestDomainRoutesRequireIdentity() {
	for _, rt := range []struct{ method, path string }{
		{http.MethodPost, "/v1/analyze"},
		{http.MethodGet, "/v1/code"},
		{http.MethodGet, "/v1/code/" + uuid.NewString()},
		{http.MethodPatch, "/v1/code/" + uuid.NewString()},
		{http.MethodPost, "/v1/explain"},
	} {
		s.Equal(http.StatusUnauthorized, s.do(rt.method, rt.path, "", nil, nil), rt.path)
		s.Equal(http.StatusUnauthorized, s.do(rt.method, rt.path, "garbage", nil, nil), rt.path)
	}
	s.Zero(s.ai.explains)
}

func (s *RouterSuite) TestAnalyzeGetAndList() {
	id := s.analyze()

	var one struct {
		Analysis struct {
			ID           string   `json:"id"`
			Title        string   `json:"title"`
			Framework    *string  `json:"framework"`
			LearningPath string   `json:"learningPath"`
			Labels       []string `json:"labels"`
		} `json:"analysis"`
	}
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/v1/code/"+id, s.token, nil, &one))
	s.Equal(id, one.Analysis.ID)
	s.Equal("Todo app", one.Analysis.Title)
	s.Require().NotNil(one.Analysis.Framework)
	s.Equal("React", *one.Analysis.Framework)
	s.NotNil(one.Analysis.Labels)

	var list struct {
		Analyses []map[string]any `json:"analyses"`
	}
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/v1/code?q=todo", s.token, nil, &list))
	s.Len(list.Analyses, 1)

	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/v1/code", s.other, nil, &list))
	s.Empty(list.Analyses)
}

func (s *RouterSuite) TestForeignAndMissingRecordsAre404() {
	id := s.analyze()
	var body map[string]string
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/v1/code/"+id, s.other, nil, &body))
	s.Equal("Analysis not found", body["error"])
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/v1/code/"+uuid.NewString(), s.token, nil, nil))
	s.Equal(http.StatusNotFound, s.do(http.MethodPatch, "/v1/code/"+id, s.other, map[string]any{"labels": []string{"x"}}, nil))
}

func (s *RouterSuite) TestMalformedIDIs400() {
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/v1/code/undefined", s.token, nil, nil))
	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/v1/code/123", s.token, nil, nil))
}

func (s *RouterSuite) TestPatchLabels() {
	id := s.analyze()
	var res struct {
		Success bool     `json:"success"`
		Labels  []string `json:"labels"`
	}
	s.Require().Equal(http.StatusOK, s.do(http.MethodPatch, "/v1/code/"+id, s.token, map[string]any{"labels": []string{"react", "react", " todo "}}, &res))
	s.True(res.Success)
	s.Equal([]string{"react", "todo"}, res.Labels)

	var list struct {
		Analyses []struct {
			Labels []string `json:"labels"`
		} `json:"analyses"`
	}
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/v1/code?label=todo", s.token, nil, &list))
	s.Require().Len(list.Analyses, 1)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPatch, "/v1/code/"+id, s.token, `{"labels":"react"}`, nil))
	s.Equal(http.StatusBadRequest, s.do(http.MethodPatch, "/v1/code/"+id, s.token, `{"labels":null}`, nil))
	s.Equal(http.StatusBadRequest, s.do(http.MethodPatch, "/v1/code/"+id, s.token, `{"labels":[1,2]}`, nil))
	s.Equal(http.StatusBadRequest, s.do(http.MethodPatch, "/v1/code/"+id, s.token, `{`, nil))
}

func (s *RouterSuite) TestLearningPathRoute() {
	id := s.analyze()
	var res struct {
		Levels []struct {
			Name   string   `json:"name"`
			Topics []string `json:"topics"`
		} `json:"levels"`
	}
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/v1/code/"+id+"/path", s.token, nil, &res))
	s.Require().Len(res.Levels, 3)
	s.Equal([]string{"useEffect"}, res.Levels[2].Topics)
}

func (s *RouterSuite) TestAnalyzeFailures() {
	var body map[string]string
	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/v1/analyze", s.token, map[string]string{"code": "  "}, &body))

	s.ai.roadmap = "not json at all"
	s.Equal(http.StatusBadGateway, s.do(http.MethodPost, "/v1/analyze", s.token, map[string]string{"code": "x"}, &body))
	s.Equal("Failed to analyze code", body["error"])

	s.ai.roadmapErr = ai.ErrQuotaExceeded
	s.Equal(http.StatusTooManyRequests, s.do(http.MethodPost, "/v1/analyze", s.token, map[string]string{"code": "x"}, nil))

	var list struct {
		Analyses []map[string]any `json:"analyses"`
	}
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/v1/code", s.token, nil, &list))
	s.Empty(list.Analyses, "failed analyses leave no record")
}

func (s *RouterSuite) TestExplainReadsThroughCache() {
	id := s.analyze()
	var first, second struct {
		Explanation string `json:"explanation"`
		Source      string `json:"source"`
		Resources   []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"resources"`
	}
	req := map[string]string{"topic": "useState", "levelName": "Level 2: State", "analysisId": id}
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/v1/explain", s.token, req, &first))
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/v1/explain", s.token, req, &second))

	s.Equal("generated", first.Source)
	s.Equal("cache", second.Source)
	s.Equal("useState explained for JavaScript", second.Explanation)
	s.Equal(1, s.ai.explains)
	s.Len(second.Resources, 2)
}

func (s *RouterSuite) TestExplainFallbackAndValidation() {
	s.ai.explainErr = ai.ErrQuotaExceeded
	var res struct {
		Explanation string `json:"explanation"`
		Source      string `json:"source"`
	}
	s.Require().Equal(http.StatusOK, s.do(http.MethodPost, "/v1/explain", s.token, map[string]string{"topic": "maps"}, &res))
	s.Equal("fallback", res.Source)
	s.Equal(appexplain.Fallback("maps", "programming"), res.Explanation)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/v1/explain", s.token, map[string]string{"topic": " "}, nil))
}

func (s *RouterSuite) TestHealthEndpoints() {
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/health", "", nil, nil))
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/readyz", "", nil, nil))

	var health middleware.HealthStatus
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/healthz", "", nil, &health))
	s.Equal("healthy", health.Checks["database"].Status)

	var metrics map[string]any
	s.Require().Equal(http.StatusOK, s.do(http.MethodGet, "/metrics", "", nil, &metrics))
	s.Contains(metrics, "explain_cache_hits")
}
