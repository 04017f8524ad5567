// Package setaapi is the client of the remote SETA REST API.
package setaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
	"github.com/trezcool/seta/core/student"
)

const (
	fundingWindowsPath = "/funding-windows"
	programmesPath     = "/programmes"
	studentsPath       = "/students"
)

// id keys, tried in order, directly in the response or nested under one of the envelopes
var (
	windowIDKeys    = []string{"funding_window_id", "fundingWindowId", "id"}
	programmeIDKeys = []string{"programme_id", "programmeId", "id"}
	envelopeKeys    = []string{"data", "funding_window", "programme"}
)

type Client struct {
	rest          *rest.Client
	baseURL       string
	sessionCookie string
}

var (
	_ fundingwindow.API = (*Client)(nil)
	_ student.Source    = (*Client)(nil)
)

func NewClient(conf *core.Config) *Client {
	return &Client{
		rest:          &rest.Client{HTTPClient: &http.Client{Timeout: conf.API.Timeout}},
		baseURL:       conf.API.BaseURL,
		sessionCookie: conf.API.SessionCookie,
	}
}

func (c *Client) request(sess core.Session, method rest.Method, path string) rest.Request {
	headers := map[string]string{"Accept": "application/json"}
	if sess.Credentials != "" {
		headers["Authorization"] = "Bearer " + sess.Credentials
		if c.sessionCookie != "" {
			headers["Cookie"] = (&http.Cookie{Name: c.sessionCookie, Value: sess.Credentials}).String()
		}
	}
	return rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: headers,
	}
}

// send performs req and decodes its JSON body. A non-2xx status or `"success": false` is a *RemoteError.
func (c *Client) send(ctx context.Context, req rest.Request) (map[string]interface{}, error) {
	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s %s", req.Method, req.BaseURL)
	}

	var body map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(res.Body))
	dec.UseNumber() // numeric ids are kept verbatim
	decodeErr := dec.Decode(&body)

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, &fundingwindow.RemoteError{StatusCode: res.StatusCode, Message: message(body)}
	}
	if decodeErr != nil {
		return nil, errors.Wrapf(decodeErr, "decoding response of %s %s", req.Method, req.BaseURL)
	}
	if ok, isBool := body["success"].(bool); isBool && !ok {
		return nil, &fundingwindow.RemoteError{StatusCode: res.StatusCode, Message: message(body)}
	}
	return body, nil
}

func message(body map[string]interface{}) string {
	for _, key := range []string{"message", "error", "detail"} {
		if msg, ok := body[key].(string); ok && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	return ""
}

// extractID finds the first id under keys, in body itself then in its envelopes.
func extractID(body map[string]interface{}, keys []string) string {
	if id := lookupID(body, keys); id != "" {
		return id
	}
	for _, env := range envelopeKeys {
		if nested, ok := body[env].(map[string]interface{}); ok {
			if id := lookupID(nested, keys); id != "" {
				return id
			}
		}
	}
	return ""
}

func lookupID(m map[string]interface{}, keys []string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

type fundingWindowPayload struct {
	AdminID          string      `json:"admin_id"`
	AgreementID      string      `json:"agreement_id"`
	Name             string      `json:"funding_window_name"`
	StartDate        string      `json:"start_date"`
	EndDate          string      `json:"end_date"`
	NumLearners      json.Number `json:"num_learners"`
	FinancialYear    string      `json:"financial_year"`
	SlotsAvailable   json.Number `json:"slots_available"`
	BudgetAllocation json.Number `json:"budget_allocation"`
}

// CreateFundingWindow posts nfw as JSON and returns the id of the created window, "" if the response had none.
func (c *Client) CreateFundingWindow(ctx context.Context, sess core.Session, nfw fundingwindow.NewFundingWindow) (string, error) {
	payload, err := json.Marshal(fundingWindowPayload{
		AdminID:          nfw.AdminID,
		AgreementID:      nfw.AgreementID,
		Name:             nfw.Name,
		StartDate:        nfw.StartDate,
		EndDate:          nfw.EndDate,
		NumLearners:      json.Number(nfw.NumLearners.String()),
		FinancialYear:    nfw.FinancialYear,
		SlotsAvailable:   json.Number(nfw.SlotsAvailable.String()),
		BudgetAllocation: json.Number(nfw.BudgetAllocation.String()),
	})
	if err != nil {
		return "", errors.Wrap(err, "encoding funding window")
	}

	req := c.request(sess, rest.Post, fundingWindowsPath)
	req.Headers["Content-Type"] = "application/json"
	req.Body = payload

	body, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	return extractID(body, windowIDKeys), nil
}

// CreateProgramme posts np as multipart/form-data, with the timesheet template as file part when set.
func (c *Client) CreateProgramme(ctx context.Context, sess core.Session, np fundingwindow.NewProgramme) (string, error) {
	payload, contentType, err := programmeForm(np)
	if err != nil {
		return "", errors.Wrap(err, "encoding programme")
	}

	req := c.request(sess, rest.Post, programmesPath)
	req.Headers["Content-Type"] = contentType
	req.Body = payload

	body, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	return extractID(body, programmeIDKeys), nil
}

func programmeForm(np fundingwindow.NewProgramme) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"admin_id", np.AdminID},
		{"agreement_id", np.AgreementID},
		{"funding_window_id", np.FundingWindowID},
		{"programme_name", np.Name},
		{"duration", np.Duration},
		{"required_students", np.RequiredStudents.String()},
		{"programme_budget", np.Budget.String()},
		{"notes", np.Notes},
	}
	for _, doc := range np.RequiredDocuments {
		fields = append(fields, [2]string{"required_documents", doc})
	}
	for _, fld := range fields {
		if err := w.WriteField(fld[0], fld[1]); err != nil {
			return nil, "", err
		}
	}

	if tf := np.Template; tf != nil {
		ct := tf.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="timesheet_template"; filename=%q`, tf.Name))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err = part.Write(tf.Content); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// ListStudents fetches every student visible to the session.
// The list is read from the `data` or `students` envelope, or from a bare JSON array.
func (c *Client) ListStudents(ctx context.Context, sess core.Session) ([]student.Student, error) {
	req := c.request(sess, rest.Get, studentsPath)
	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s %s", req.Method, req.BaseURL)
	}

	var envelope struct {
		Success  *bool             `json:"success"`
		Message  string            `json:"message"`
		Data     []student.Student `json:"data"`
		Students []student.Student `json:"students"`
	}
	trimmed := bytes.TrimSpace([]byte(res.Body))
	isArray := len(trimmed) > 0 && trimmed[0] == '['

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		if !isArray {
			_ = json.Unmarshal(trimmed, &envelope)
		}
		return nil, &fundingwindow.RemoteError{StatusCode: res.StatusCode, Message: envelope.Message}
	}

	if isArray {
		var students []student.Student
		if err = json.Unmarshal(trimmed, &students); err != nil {
			return nil, errors.Wrap(err, "decoding students")
		}
		return students, nil
	}
	if err = json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, errors.Wrap(err, "decoding students")
	}
	if envelope.Success != nil && !*envelope.Success {
		return nil, &fundingwindow.RemoteError{StatusCode: res.StatusCode, Message: envelope.Message}
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	if envelope.Students != nil {
		return envelope.Students, nil
	}
	return []student.Student{}, nil
}
