package routes_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yavuz-tech/helvino/internal/infra/config"
	"github.com/yavuz-tech/helvino/internal/infra/security"
	httproutes "github.com/yavuz-tech/helvino/internal/transport/http/routes"
)

func TestHealthEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := zap.NewDevelopment()
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	r := httproutes.Register(httproutes.Dependencies{
		Config: cfg,
		Logger: logger,
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

func TestOrgTokenRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	codec, err := security.NewOrgTokenCodec([]byte("routes-test-key"))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	r := httproutes.Register(httproutes.Dependencies{
		Config:    cfg,
		Logger:    logger,
		OrgTokens: codec,
	})

	issue := httptest.NewRecorder()
	issueReq, _ := http.NewRequest(http.MethodPost, "/api/v1/org-tokens",
		strings.NewReader(`{"org_id":"org-1","org_key":"key-1"}`))
	issueReq.Header.Set("Content-Type", "application/json")

	r.ServeHTTP(issue, issueReq)

	if issue.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", issue.Code, issue.Body.String())
	}

	var issued struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(issue.Body.Bytes(), &issued); err != nil {
		t.Fatalf("decode issue response: %v", err)
	}
	if issued.Token == "" {
		t.Fatal("expected a token in the issue response")
	}

	verify := httptest.NewRecorder()
	verifyReq, _ := http.NewRequest(http.MethodPost, "/api/v1/org-tokens/verify",
		strings.NewReader(`{"token":"`+issued.Token+`"}`))
	verifyReq.Header.Set("Content-Type", "application/json")

	r.ServeHTTP(verify, verifyReq)

	if verify.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", verify.Code, verify.Body.String())
	}

	var payload struct {
		OrgID  string `json:"org_id"`
		OrgKey string `json:"org_key"`
	}
	if err := json.Unmarshal(verify.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if payload.OrgID != "org-1" || payload.OrgKey != "key-1" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestTamperedOrgTokenRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.AppConfig{App: config.AppSettings{Env: "test"}}

	codec, err := security.NewOrgTokenCodec([]byte("routes-test-key"))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	token, err := codec.Encode("org-1", "key-1", 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	r := httproutes.Register(httproutes.Dependencies{
		Config:    cfg,
		Logger:    zap.NewNop(),
		OrgTokens: codec,
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/org-tokens/verify",
		strings.NewReader(`{"token":"`+token+`x"}`))
	req.Header.Set("Content-Type", "application/json")

	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d: %s", w.Code, w.Body.String())
	}
}
