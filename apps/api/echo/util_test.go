package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
	"github.com/trezcool/seta/core/student"
	"github.com/trezcool/seta/storage/database/inmem"
	"github.com/trezcool/seta/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type fakeAPI struct {
	mu         sync.Mutex
	windows    []fundingwindow.NewFundingWindow
	programmes []fundingwindow.NewProgramme
	windowErr  error
}

func (api *fakeAPI) CreateFundingWindow(_ context.Context, _ core.Session, nfw fundingwindow.NewFundingWindow) (string, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.windows = append(api.windows, nfw)
	if api.windowErr != nil {
		return "", api.windowErr
	}
	return "fw-1", nil
}

func (api *fakeAPI) CreateProgramme(_ context.Context, _ core.Session, np fundingwindow.NewProgramme) (string, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.programmes = append(api.programmes, np)
	return "prog-" + np.Name, nil
}

type fakeSource struct {
	students []student.Student
	err      error
}

func (src *fakeSource) ListStudents(context.Context, core.Session) ([]student.Student, error) {
	return src.students, src.err
}

type serverTester struct {
	conf   *core.Config
	server *Server
	api    *fakeAPI
	src    *fakeSource
	repo   fundingwindow.Repository
	logger *testutil.Logger
}

func setup(t *testing.T) *serverTester {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(t)
	validate, translator := testutil.NewValidator()

	st := &serverTester{
		conf:   conf,
		api:    &fakeAPI{},
		src:    &fakeSource{},
		repo:   inmemdb.NewSubmissionRepository(),
		logger: logger,
	}
	st.server = NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		FormSvc:    fundingwindow.NewService(st.api, st.repo, nil, logger, validate, translator),
		StudentSvc: student.NewService(st.src),
		Validate:   validate,
		Translator: translator,
	})
	t.Cleanup(func() { _ = st.server.Close() })
	return st
}

func (st *serverTester) token(t *testing.T, actorID string) string {
	token, err := GenerateToken(st.conf, NewClaims(st.conf, actorID, "admin", "admin@seta.test", time.Hour))
	require.NoError(t, err)
	return token
}

// do serves the request and decodes the JSON response into out, when set.
func (st *serverTester) do(t *testing.T, method, path, token string, body []byte, out interface{}) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body)
	st.server.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, st *serverTester, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			st.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
