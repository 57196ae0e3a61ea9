package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/podium/internal/ink"
	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/store/memory"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

const testToken = "secret"

type testEnv struct {
	srv   *httptest.Server
	svc   *workflow.Service
	store *memory.MemoryStore
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	st := memory.New()
	svc := workflow.New(st,
		workflow.WithLogger(quietLogger()),
		workflow.WithClock(func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }),
	)
	s := New(svc, append([]Option{WithLogger(quietLogger())}, opts...)...)
	ts := httptest.NewServer(s.NewHTTPHandler(testToken))
	t.Cleanup(ts.Close)
	return &testEnv{srv: ts, svc: svc, store: st}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, auth bool, out any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode %s %s (%d): %v; body: %s", method, path, resp.StatusCode, err, raw)
		}
	}
	return resp
}

func testTemplate() *model.ContractTemplate {
	return &model.ContractTemplate{
		Name: "Keynote Agreement",
		Sections: []model.Section{
			{ID: "parties", Title: "Parties", Order: 1, Required: true, Body: "Between {{client_name}} and {{speaker_name}}."},
			{ID: "fee", Title: "Fee", Order: 2, Required: true, Body: "Fee: {{total_amount}}."},
		},
		Variables: []model.Variable{
			{Key: "client_name", Label: "Client Name", Required: true},
			{Key: "total_amount", Label: "Speaking Fee", Type: model.VarCurrency, Required: true},
		},
	}
}

func testDeal() *model.Deal {
	amount := 5000.0
	return &model.Deal{
		ID:         "deal-7",
		Client:     model.Client{Name: "Ada Lovelace", Email: "ada@example.com"},
		Financials: model.Financials{Amount: &amount, Currency: "USD"},
	}
}

func signatureImage(t *testing.T, inked bool) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 30, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 30; x++ {
			img.Set(x, y, color.White)
		}
	}
	if inked {
		for x := 2; x < 28; x++ {
			img.Set(x, 5, color.Black)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// sentContract creates a template and a single-signer contract, sends it and
// returns the contract id and the client token.
func (e *testEnv) sentContract(t *testing.T) (string, string) {
	t.Helper()
	var tpl model.ContractTemplate
	if resp := e.do(t, http.MethodPost, "/v1/templates", testTemplate(), true, &tpl); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create template: status %d", resp.StatusCode)
	}
	var c model.Contract
	resp := e.do(t, http.MethodPost, "/v1/contracts", workflow.CreateRequest{TemplateID: tpl.ID, Deal: testDeal()}, true, &c)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create contract: status %d", resp.StatusCode)
	}
	var sent workflow.SendResult
	if resp := e.do(t, http.MethodPost, "/v1/contracts/"+c.ID+"/send", nil, true, &sent); resp.StatusCode != http.StatusOK {
		t.Fatalf("send: status %d", resp.StatusCode)
	}
	if len(sent.Tokens) != 1 {
		t.Fatalf("tokens = %d, want 1", len(sent.Tokens))
	}
	return c.ID, sent.Tokens[0].Token
}

func TestHealth_NoAuth(t *testing.T) {
	e := newTestEnv(t)
	var body map[string]string
	resp := e.do(t, http.MethodGet, "/v1/health", nil, false, &body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/v1/contracts", nil, false, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestSigningFlow(t *testing.T) {
	e := newTestEnv(t)
	id, token := e.sentContract(t)

	var view workflow.SigningView
	resp := e.do(t, http.MethodGet, "/v1/sign/"+token, nil, false, &view)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: status %d", resp.StatusCode)
	}
	if !view.CanSign || view.SignerType != model.RoleClient {
		t.Fatalf("view = %+v", view)
	}

	in := map[string]string{
		"signer_name":     "Ada Lovelace",
		"signer_email":    "ada@example.com",
		"signature_image": signatureImage(t, true),
	}
	var res workflow.SubmitResult
	resp = e.do(t, http.MethodPost, "/v1/sign/"+token, in, false, &res)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}
	if res.Contract.Status != model.StatusFullyExecuted || len(res.Signatures) != 1 {
		t.Fatalf("result = %s with %d signatures", res.Contract.Status, len(res.Signatures))
	}
	if res.Signatures[0].IPAddress == "" {
		t.Errorf("signature missing ip address")
	}

	var errBody errorBody
	resp = e.do(t, http.MethodPost, "/v1/sign/"+token, in, false, &errBody)
	if resp.StatusCode != http.StatusConflict || errBody.Reason != string(model.ReasonAlreadySigned) {
		t.Fatalf("resubmit = %d %+v", resp.StatusCode, errBody)
	}

	var detail workflow.ContractDetail
	if resp := e.do(t, http.MethodGet, "/v1/contracts/"+id, nil, true, &detail); resp.StatusCode != http.StatusOK {
		t.Fatalf("get contract: status %d", resp.StatusCode)
	}
	if detail.Contract.Status != model.StatusFullyExecuted {
		t.Errorf("status = %s", detail.Contract.Status)
	}

	var evts struct {
		Events []*model.Event `json:"events"`
	}
	e.do(t, http.MethodGet, "/v1/contracts/"+id+"/events", nil, true, &evts)
	if len(evts.Events) < 4 {
		t.Errorf("events = %d, want at least 4", len(evts.Events))
	}
}

func TestSign_UnknownToken(t *testing.T) {
	e := newTestEnv(t)
	var body errorBody
	resp := e.do(t, http.MethodGet, "/v1/sign/nope", nil, false, &body)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body.Error != model.ErrTokenNotFound.Error() {
		t.Errorf("error = %q", body.Error)
	}
}

func TestSign_BlankSignature(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.sentContract(t)

	var body errorBody
	resp := e.do(t, http.MethodPost, "/v1/sign/"+token, map[string]string{
		"signer_name":     "Ada Lovelace",
		"signer_email":    "ada@example.com",
		"signature_image": signatureImage(t, false),
	}, false, &body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if len(body.Fields) != 1 || body.Fields[0].Field != "signature_image" {
		t.Errorf("fields = %+v", body.Fields)
	}
}

func TestSign_OversizedSignature(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.sentContract(t)

	img := image.NewGray(image.Rect(0, 0, ink.MaxDimension+1, 4))
	img.SetGray(3, 2, color.Gray{Y: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	var body errorBody
	resp := e.do(t, http.MethodPost, "/v1/sign/"+token, map[string]string{
		"signer_name":     "Ada Lovelace",
		"signer_email":    "ada@example.com",
		"signature_image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, false, &body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if len(body.Fields) != 1 || body.Fields[0].Field != "signature_image" {
		t.Errorf("fields = %+v", body.Fields)
	}
}

func TestSign_CancelledContract(t *testing.T) {
	e := newTestEnv(t)
	id, token := e.sentContract(t)

	var c model.Contract
	resp := e.do(t, http.MethodPost, "/v1/contracts/"+id+"/cancel", map[string]string{"reason": "withdrawn"}, true, &c)
	if resp.StatusCode != http.StatusOK || c.Status != model.StatusCancelled {
		t.Fatalf("cancel = %d %s", resp.StatusCode, c.Status)
	}

	var body errorBody
	resp = e.do(t, http.MethodPost, "/v1/sign/"+token, map[string]string{
		"signer_name":     "Ada Lovelace",
		"signer_email":    "ada@example.com",
		"signature_image": signatureImage(t, true),
	}, false, &body)
	if resp.StatusCode != http.StatusConflict || body.Reason != string(model.ReasonContractNotSignable) {
		t.Fatalf("submit = %d %+v", resp.StatusCode, body)
	}
}

func TestInvalidTransition(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.sentContract(t)

	var body errorBody
	resp := e.do(t, http.MethodPost, "/v1/contracts/"+id+"/send", nil, true, &body)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if body.Current != model.StatusSentForSignature || body.Attempted != model.StatusSentForSignature {
		t.Errorf("body = %+v", body)
	}

	resp = e.do(t, http.MethodPost, "/v1/contracts/"+id+"/activate", nil, true, &body)
	if resp.StatusCode != http.StatusConflict || body.Attempted != model.StatusActive {
		t.Errorf("activate = %d %+v", resp.StatusCode, body)
	}
}

func TestCreateContract_Errors(t *testing.T) {
	e := newTestEnv(t)
	var tpl model.ContractTemplate
	e.do(t, http.MethodPost, "/v1/templates", testTemplate(), true, &tpl)

	var body errorBody
	resp := e.do(t, http.MethodPost, "/v1/contracts", workflow.CreateRequest{TemplateID: tpl.ID}, true, &body)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if strings.Join(body.Missing, ",") != "Client Name,Speaking Fee" {
		t.Errorf("missing = %v", body.Missing)
	}

	resp = e.do(t, http.MethodPost, "/v1/contracts", workflow.CreateRequest{
		TemplateID:   tpl.ID,
		Deal:         testDeal(),
		SectionEdits: map[string]string{"fee": "rewritten"},
	}, true, &body)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("non-editable edit: status = %d, want 422", resp.StatusCode)
	}

	resp = e.do(t, http.MethodPost, "/v1/contracts", workflow.CreateRequest{TemplateID: "tpl-missing", Deal: testDeal()}, true, &body)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown template: status = %d, want 404", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, e.srv.URL+"/v1/contracts", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	raw, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", raw.StatusCode)
	}
}

func TestTemplates(t *testing.T) {
	e := newTestEnv(t)
	var tpl model.ContractTemplate
	e.do(t, http.MethodPost, "/v1/templates", testTemplate(), true, &tpl)

	next := testTemplate()
	next.ID = tpl.ID
	var v2 model.ContractTemplate
	e.do(t, http.MethodPost, "/v1/templates", next, true, &v2)
	if v2.Version != 2 {
		t.Fatalf("version = %d, want 2", v2.Version)
	}

	var got model.ContractTemplate
	resp := e.do(t, http.MethodGet, "/v1/templates/"+tpl.ID+"?version=1", nil, true, &got)
	if resp.StatusCode != http.StatusOK || got.Version != 1 {
		t.Errorf("get v1 = %d version %d", resp.StatusCode, got.Version)
	}

	var list struct {
		Templates []*model.ContractTemplate `json:"templates"`
	}
	e.do(t, http.MethodGet, "/v1/templates", nil, true, &list)
	if len(list.Templates) != 1 || list.Templates[0].Version != 2 {
		t.Errorf("list = %+v", list.Templates)
	}

	var preview workflow.Preview
	resp = e.do(t, http.MethodPost, "/v1/templates/"+tpl.ID+"/preview", workflow.CreateRequest{Deal: testDeal()}, true, &preview)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview: status %d", resp.StatusCode)
	}
	if !strings.Contains(preview.DocumentBody, "Fee: $5,000.00.") {
		t.Errorf("preview body = %q", preview.DocumentBody)
	}

	var body errorBody
	resp = e.do(t, http.MethodPost, "/v1/templates", &model.ContractTemplate{Name: "bad"}, true, &body)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("invalid template: status = %d, want 422", resp.StatusCode)
	}
}

func TestListContracts_StatusFilter(t *testing.T) {
	e := newTestEnv(t)
	e.sentContract(t)

	var list struct {
		Contracts []*model.Contract `json:"contracts"`
		Total     int               `json:"total"`
	}
	e.do(t, http.MethodGet, "/v1/contracts?status=sent_for_signature", nil, true, &list)
	if list.Total != 1 || len(list.Contracts) != 1 {
		t.Errorf("sent = %d", list.Total)
	}
	e.do(t, http.MethodGet, "/v1/contracts?status=draft", nil, true, &list)
	if list.Total != 0 || len(list.Contracts) != 0 {
		t.Errorf("draft = %d", list.Total)
	}

	resp := e.do(t, http.MethodGet, "/v1/contracts?status=bogus", nil, true, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus status: %d, want 400", resp.StatusCode)
	}
}

func TestGetDocument(t *testing.T) {
	e := newTestEnv(t)
	id, _ := e.sentContract(t)

	resp := e.do(t, http.MethodGet, "/v1/contracts/"+id+"/document?format=html", nil, true, nil)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("html = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	resp = e.do(t, http.MethodGet, "/v1/contracts/"+id+"/document", nil, true, nil)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("text content type = %s", resp.Header.Get("Content-Type"))
	}
	resp = e.do(t, http.MethodGet, "/v1/contracts/"+id+"/document?format=pdf", nil, true, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("pdf = %d, want 400", resp.StatusCode)
	}
	resp = e.do(t, http.MethodGet, "/v1/contracts/ct-missing/document", nil, true, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", resp.StatusCode)
	}
}

func TestContractReport(t *testing.T) {
	e := newTestEnv(t)
	e.sentContract(t)

	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/v1/reports/contracts.xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/vnd.openxmlformats") {
		t.Errorf("content type = %s", resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Errorf("body is not a zip archive")
	}
}

func TestSign_RateLimited(t *testing.T) {
	limiter := NewMemoryLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	e := newTestEnv(t, WithLimiter(limiter))

	for i := 0; i < 2; i++ {
		e.do(t, http.MethodGet, "/v1/sign/nope", nil, false, nil)
	}
	var body errorBody
	resp := e.do(t, http.MethodGet, "/v1/sign/nope", nil, false, &body)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}

	// Admin routes are not limited.
	if resp := e.do(t, http.MethodGet, "/v1/contracts", nil, true, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("admin status = %d", resp.StatusCode)
	}
}

func TestClassify_Internal(t *testing.T) {
	code, body := classify(&model.PersistenceError{Op: "get contract", Err: context.DeadlineExceeded})
	if code != http.StatusInternalServerError || body.Error != "internal server error" {
		t.Errorf("classify = %d %+v", code, body)
	}
}
