package tests

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"classrecord/backend/internal/gateway"
	"classrecord/backend/internal/grading"
	"classrecord/backend/internal/record"
	"classrecord/backend/internal/session"
	"classrecord/backend/internal/shared"
	"classrecord/backend/internal/store"
)

const testSecret = "gateway-test-session-secret"

// TestEnv holds all the running components for the test
type TestEnv struct {
	Router  http.Handler
	Store   *store.MemoryStore
	Service *record.Service
}

// setupGatewayTestEnv spins up the whole server stack in-memory
func setupGatewayTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	// --- 1. Templates, store and sessions ---
	templates, err := grading.NewRegistry(grading.DefaultTemplates()...)
	if err != nil {
		t.Fatalf("Failed to build templates: %v", err)
	}
	st := store.NewMemoryStore()
	sessions := session.NewManager(session.NewMemoryCache(), testSecret, time.Minute)

	// --- 2. Record service ---
	svc := record.NewService(st, templates, sessions, zap.NewNop())

	// --- 3. Gateway router ---
	router := gateway.SetupRoutes(gateway.Dependencies{
		Records: svc,
		Logger:  zap.NewNop(),
		CORS: shared.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		},
		PrefillTTL: 24 * time.Hour,
	})

	return &TestEnv{Router: router, Store: st, Service: svc}
}

// do sends a request through the router.
func (env *TestEnv) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reader = bytes.NewBuffer(jsonBody)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	env.Router.ServeHTTP(rr, req)
	return rr
}

// upload posts a CSV class record as a multipart file.
func (env *TestEnv) upload(t *testing.T, template, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write([]byte(content))
	mw.Close()

	req, _ := http.NewRequest("POST", "/api/records/"+template+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rr := httptest.NewRecorder()
	env.Router.ServeHTTP(rr, req)
	return rr
}

// decode unmarshals a JSON envelope.
func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response %q: %v", rr.Body.String(), err)
	}
	return resp
}

const midtermCSV = `ID,Last Name,First Name,attendance,quiz1,quiz2,quiz3,quiz4,prelim,midtermwrittenexam,assignment1,activity1,midtermlabexam,midtermGrade
2021-0001,Cruz,Ana,100,95,90,100,98,97,99,100,100,98,
,Nobody,Missing,100
2021-0002,Reyes,Ben,80,-1,70,60,65,75,70,80,85,72,
`
