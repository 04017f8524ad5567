package echoapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/seta/core/fundingwindow"
)

const formsPath = "/v1/funding-windows/forms"

func openForm(t *testing.T, st *serverTester, token string) FormView {
	var view FormView
	rec := st.do(t, http.MethodPost, formsPath, token, []byte(`{"agreementId": " AG-1 "}`), &view)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return view
}

func fillForm(t *testing.T, st *serverTester, token string, view FormView) {
	path := formsPath + "/" + view.ID
	rec := st.do(t, http.MethodPatch, path, token, []byte(`{
		"windowName": "Q1 2025",
		"startDate": "2025-01-01",
		"endDate": "2025-03-31",
		"numLearners": 10,
		"financialYear": "2025/26",
		"slotsAvailable": "10",
		"budgetAllocation": "50000"
	}`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	pid := view.Form.Programmes[0].LocalID
	rec = st.do(t, http.MethodPatch, path+"/programmes/"+pid, token, []byte(`{
		"programmeName": "Eng101",
		"budgetAllocation": 20000,
		"requiredDocuments": ["ID copy", " ", "Matric certificate"]
	}`), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestFundingWindowAPI_open(t *testing.T) {
	st := setup(t)
	token := st.token(t, "admin-1")

	view := openForm(t, st, token)
	assert.NotEmpty(t, view.ID)
	assert.False(t, view.Editing)
	assert.Equal(t, "AG-1", view.Form.AgreementID)
	require.Len(t, view.Form.Programmes, 1)
	assert.NotEmpty(t, view.Form.Programmes[0].LocalID)
	assert.Nil(t, view.RemainingBudget)

	var edit FormView
	rec := st.do(t, http.MethodPost, formsPath, token, []byte(`{
		"agreementId": "AG-2",
		"existingWindow": {"windowName": "Q4", "budgetAllocation": "100", "programmes": [{"programmeName": "Eng101", "budgetAllocation": "150"}]}
	}`), &edit)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, edit.Editing)
	assert.Equal(t, "AG-2", edit.Form.AgreementID)
	assert.Equal(t, "Q4", edit.Form.WindowName)
	require.NotNil(t, edit.RemainingBudget)
	assert.Equal(t, "-50", edit.RemainingBudget.String())
	require.Len(t, edit.Warnings, 1)
	assert.Equal(t, fundingwindow.WarnOverBudget, edit.Warnings[0].Code)

	req, rec := newRequest(http.MethodPost, formsPath, []byte(`{}`))
	st.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
}

func TestFundingWindowAPI_form(t *testing.T) {
	st := setup(t)
	token := st.token(t, "admin-1")
	view := openForm(t, st, token)
	path := formsPath + "/" + view.ID
	pid := view.Form.Programmes[0].LocalID

	runHTTPTests(t, st, []httpTest{
		{
			name:     "other actor",
			method:   http.MethodGet,
			path:     path,
			token:    st.token(t, "admin-2"),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "unknown form",
			method:   http.MethodGet,
			path:     formsPath + "/nope",
			token:    token,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unknown field",
			method:   http.MethodPatch,
			path:     path,
			body:     []byte(`{"windowName": "Q1", "programmes": "lol"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: `unknown field: "programmes"`}),
		},
		{
			name:     "not an object",
			method:   http.MethodPatch,
			path:     path,
			body:     []byte(`["windowName"]`),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unsupported value",
			method:   http.MethodPatch,
			path:     path,
			body:     []byte(`{"windowName": {"a": 1}}`),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown programme",
			method:   http.MethodPatch,
			path:     path + "/programmes/nope",
			body:     []byte(`{"programmeName": "Eng101"}`),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "programme not found"}),
		},
		{
			name:     "documents must be a list",
			method:   http.MethodPatch,
			path:     path + "/programmes/" + pid,
			body:     []byte(`{"requiredDocuments": "ID copy"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"requiredDocuments": "must be a list"}`),
		},
		{
			name:     "last programme",
			method:   http.MethodDelete,
			path:     path + "/programmes/" + pid,
			token:    token,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: fundingwindow.ErrLastProgramme.Error()}),
		},
	})

	var got FormView
	rec := st.do(t, http.MethodGet, path, token, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", got.Form.WindowName, "a rejected patch applies nothing")
	assert.Len(t, got.Form.Programmes, 1)
}

func TestFundingWindowAPI_programmes(t *testing.T) {
	st := setup(t)
	token := st.token(t, "admin-1")
	view := openForm(t, st, token)
	path := formsPath + "/" + view.ID
	fillForm(t, st, token, view)

	var added ProgrammeResponse
	rec := st.do(t, http.MethodPost, path+"/programmes", token, nil, &added)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, added.LocalID)

	var got FormView
	st.do(t, http.MethodPatch, path+"/programmes/"+added.LocalID, token, []byte(`{"programmeName": "Data201", "budgetAllocation": "40000"}`), &got)
	require.Len(t, got.Form.Programmes, 2)
	assert.Equal(t, []string{"ID copy", "Matric certificate"}, got.Form.Programmes[0].RequiredDocuments)
	assert.Equal(t, "60000", got.TotalProgrammeBudget.String())
	require.NotNil(t, got.RemainingBudget)
	assert.Equal(t, "-10000", got.RemainingBudget.String())
	require.Len(t, got.Warnings, 1)
	assert.Equal(t, fundingwindow.WarnOverBudget, got.Warnings[0].Code)

	rec = st.do(t, http.MethodPatch, path+"/programmes/"+added.LocalID, token, []byte(`{"requiredDocuments": ["CV"], "notes": "x", "bogus": "x"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var unchanged FormView
	st.do(t, http.MethodGet, path, token, nil, &unchanged)
	assert.Equal(t, []string{}, unchanged.Form.Programmes[1].RequiredDocuments, "a rejected edit applies nothing")
	assert.Equal(t, "", unchanged.Form.Programmes[1].Notes)

	rec = st.do(t, http.MethodDelete, path+"/programmes/"+added.LocalID, token, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, got.Form.Programmes, 1)
	assert.Equal(t, "Eng101", got.Form.Programmes[0].ProgrammeName)
	assert.Equal(t, "30000", got.RemainingBudget.String())
	assert.Empty(t, got.Warnings)
}

func newTemplateRequest(t *testing.T, path, token, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(templateFormField, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPut, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func TestFundingWindowAPI_template(t *testing.T) {
	st := setup(t)
	token := st.token(t, "admin-1")
	view := openForm(t, st, token)
	path := formsPath + "/" + view.ID + "/programmes/" + view.Form.Programmes[0].LocalID + "/template"

	req, rec := newTemplateRequest(t, path, token, "timesheet.csv", []byte("date,hours\n"))
	st.server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: []byte(`{"name": "timesheet.csv", "size": 11, "contentType": "application/octet-stream"}`),
	}, rec)

	var got FormView
	st.do(t, http.MethodGet, formsPath+"/"+view.ID, token, nil, &got)
	require.NotNil(t, got.Form.Programmes[0].TimesheetTemplate)
	assert.Equal(t, "timesheet.csv", got.Form.Programmes[0].TimesheetTemplate.Name)

	req, rec = newTemplateRequest(t, formsPath+"/"+view.ID+"/programmes/nope/template", token, "t.csv", []byte("x"))
	st.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = st.do(t, http.MethodPut, path, token, []byte(`{}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = st.do(t, http.MethodDelete, path, token, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	var cleared FormView
	st.do(t, http.MethodGet, formsPath+"/"+view.ID, token, nil, &cleared)
	assert.Nil(t, cleared.Form.Programmes[0].TimesheetTemplate)
}

func TestFundingWindowAPI_validate(t *testing.T) {
	st := setup(t)
	token := st.token(t, "admin-1")
	view := openForm(t, st, token)
	path := formsPath + "/" + view.ID

	rec := st.do(t, http.MethodPost, path+"/validate", token, nil, nil)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: []byte(`{
			"windowName": "this field is required",
			"startDate": "this field is required",
			"endDate": "this field is required",
			"numLearners": "must be a number greater than 0",
			"slotsAvailable": "must be a number greater than 0",
			"budgetAllocation": "must be a number greater than 0",
			"programme_0_programmeName": "this field is required",
			"programme_0_budgetAllocation": "must be a number greater than 0"
		}`),
	}, rec)

	var got FormView
	st.do(t, http.MethodPatch, path, token, []byte(`{"windowName": "Q1 2025"}`), &got)
	assert.Len(t, got.Errors, 7, "editing a field clears its error")
	assert.NotContains(t, got.Errors, fundingwindow.FieldWindowName)

	fillForm(t, st, token, view)
	rec = st.do(t, http.MethodPost, path+"/validate", token, nil, nil)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{}`)}, rec)
	assert.Empty(t, st.api.windows, "validation never calls the remote api")
}

func TestFundingWindowAPI_submit(t *testing.T) {
	t.Run("invalid", func(t *testing.T) {
		st := setup(t)
		token := st.token(t, "admin-1")
		view := openForm(t, st, token)

		rec := st.do(t, http.MethodPost, formsPath+"/"+view.ID+"/submit", token, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"windowName":"this field is required"`)
		assert.Empty(t, st.api.windows)

		var got FormView
		st.do(t, http.MethodGet, formsPath+"/"+view.ID, token, nil, &got)
		assert.Len(t, got.Errors, 8)
		assert.False(t, got.Submitting)
	})

	t.Run("created", func(t *testing.T) {
		st := setup(t)
		token := st.token(t, "admin-1")
		view := openForm(t, st, token)
		path := formsPath + "/" + view.ID
		fillForm(t, st, token, view)

		var res fundingwindow.Result
		rec := st.do(t, http.MethodPost, path+"/submit", token, nil, &res)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.True(t, res.Success)
		assert.Equal(t, fundingwindow.StageSucceeded, res.Stage)
		assert.Equal(t, "fw-1", res.WindowID)
		assert.Equal(t, []string{"prog-Eng101"}, res.ProgrammeIDs)
		assert.NotEmpty(t, res.SubmissionID)

		require.Len(t, st.api.windows, 1)
		assert.Equal(t, "admin-1", st.api.windows[0].AdminID)
		assert.Equal(t, "AG-1", st.api.windows[0].AgreementID)
		require.Len(t, st.api.programmes, 1)
		assert.Equal(t, []string{"ID copy", "Matric certificate"}, st.api.programmes[0].RequiredDocuments)

		runHTTPTests(t, st, []httpTest{
			{
				name:     "submitted twice",
				method:   http.MethodPost,
				path:     path + "/submit",
				token:    token,
				wantCode: http.StatusConflict,
				wantData: marchallObj(t, httpErr{Error: fundingwindow.ErrAlreadySubmitted.Error()}),
			},
			{
				name:     "frozen",
				method:   http.MethodPatch,
				path:     path,
				body:     []byte(`{"windowName": "Q2"}`),
				token:    token,
				wantCode: http.StatusConflict,
			},
			{
				name:     "journaled",
				method:   http.MethodGet,
				path:     "/v1/submissions/" + res.SubmissionID,
				token:    token,
				wantCode: http.StatusOK,
			},
		})
		assert.Len(t, st.api.windows, 1)
	})

	t.Run("rejected by the remote api", func(t *testing.T) {
		st := setup(t)
		st.api.windowErr = &fundingwindow.RemoteError{StatusCode: http.StatusBadRequest, Message: "agreement is closed"}
		token := st.token(t, "admin-1")
		view := openForm(t, st, token)
		fillForm(t, st, token, view)

		var res fundingwindow.Result
		rec := st.do(t, http.MethodPost, formsPath+"/"+view.ID+"/submit", token, nil, &res)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, res.Success)
		assert.Equal(t, "agreement is closed", res.Error)
		assert.Equal(t, fundingwindow.StageCreatingParent, res.FailedAt)

		// a failed form may be submitted again
		st.api.windowErr = errors.New("connection refused")
		st.do(t, http.MethodPost, formsPath+"/"+view.ID+"/submit", token, nil, &res)
		assert.Equal(t, "failed to create funding window", res.Error)
		assert.Len(t, st.api.windows, 2)
	})

	t.Run("in progress", func(t *testing.T) {
		st := setup(t)
		token := st.token(t, "admin-1")
		view := openForm(t, st, token)

		store, ok := st.server.forms.get(view.ID, "admin-1")
		require.True(t, ok)
		require.NoError(t, store.BeginSubmit())

		rec := st.do(t, http.MethodPost, formsPath+"/"+view.ID+"/submit", token, nil, nil)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: fundingwindow.ErrSubmitInProgress.Error()}),
		}, rec)
	})
}

func TestFundingWindowAPI_discard(t *testing.T) {
	st := setup(t)
	token := st.token(t, "admin-1")
	view := openForm(t, st, token)
	path := formsPath + "/" + view.ID

	runHTTPTests(t, st, []httpTest{
		{name: "other actor", method: http.MethodDelete, path: path, token: st.token(t, "admin-2"), wantCode: http.StatusNotFound},
		{name: "owner", method: http.MethodDelete, path: path, token: token, wantCode: http.StatusNoContent},
		{name: "gone", method: http.MethodGet, path: path, token: token, wantCode: http.StatusNotFound},
	})
}
