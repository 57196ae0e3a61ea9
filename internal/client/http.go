package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

// actorHeader mirrors server.ActorHeader.
const actorHeader = "X-Podium-Actor"

// HTTPClient implements PodiumClient using the podium HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// SetActor names the admin recorded on audit events for mutations.
func (c *HTTPClient) SetActor(actor string) { c.actor = actor }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Templates ---

func (c *HTTPClient) ListTemplates(ctx context.Context) ([]*model.ContractTemplate, error) {
	var resp struct {
		Templates []*model.ContractTemplate `json:"templates"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/templates", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Templates, nil
}

func (c *HTTPClient) GetTemplate(ctx context.Context, id string, version int) (*model.ContractTemplate, error) {
	path := "/v1/templates/" + url.PathEscape(id)
	if version > 0 {
		path += "?version=" + strconv.Itoa(version)
	}
	var t model.ContractTemplate
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) CreateTemplate(ctx context.Context, t *model.ContractTemplate) (*model.ContractTemplate, error) {
	var out model.ContractTemplate
	if err := c.doJSON(ctx, http.MethodPost, "/v1/templates", t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Preview(ctx context.Context, templateID string, req *workflow.CreateRequest) (*workflow.Preview, error) {
	var p workflow.Preview
	if err := c.doJSON(ctx, http.MethodPost, "/v1/templates/"+url.PathEscape(templateID)+"/preview", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- Contracts ---

func contractQuery(req *ListContractsRequest) string {
	if req == nil {
		return ""
	}
	q := url.Values{}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if req.DealID != "" {
		q.Set("deal_id", req.DealID)
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *HTTPClient) ListContracts(ctx context.Context, req *ListContractsRequest) (*ListContractsResponse, error) {
	var resp ListContractsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/contracts"+contractQuery(req), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateContract(ctx context.Context, req *workflow.CreateRequest) (*model.Contract, error) {
	var out model.Contract
	if err := c.doJSON(ctx, http.MethodPost, "/v1/contracts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetContract(ctx context.Context, id string) (*workflow.ContractDetail, error) {
	var d workflow.ContractDetail
	if err := c.doJSON(ctx, http.MethodGet, "/v1/contracts/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) SendContract(ctx context.Context, id string) (*workflow.SendResult, error) {
	var res workflow.SendResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/contracts/"+url.PathEscape(id)+"/send", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ApproveContract(ctx context.Context, id string) (*workflow.SendResult, error) {
	var res workflow.SendResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/contracts/"+url.PathEscape(id)+"/approve", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) transition(ctx context.Context, id, action string, body any) (*model.Contract, error) {
	var out model.Contract
	if err := c.doJSON(ctx, http.MethodPost, "/v1/contracts/"+url.PathEscape(id)+"/"+action, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RequestReview(ctx context.Context, id string) (*model.Contract, error) {
	return c.transition(ctx, id, "review", nil)
}

func (c *HTTPClient) CancelContract(ctx context.Context, id, reason string) (*model.Contract, error) {
	return c.transition(ctx, id, "cancel", map[string]string{"reason": reason})
}

func (c *HTTPClient) ActivateContract(ctx context.Context, id string) (*model.Contract, error) {
	return c.transition(ctx, id, "activate", nil)
}

func (c *HTTPClient) CompleteContract(ctx context.Context, id string) (*model.Contract, error) {
	return c.transition(ctx, id, "complete", nil)
}

func (c *HTTPClient) GetEvents(ctx context.Context, id string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/contracts/"+url.PathEscape(id)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) GetDocument(ctx context.Context, id, format string) (string, error) {
	path := "/v1/contracts/" + url.PathEscape(id) + "/document"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	data, err := c.doRaw(ctx, http.MethodGet, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *HTTPClient) ContractReport(ctx context.Context, req *ListContractsRequest) ([]byte, error) {
	return c.doRaw(ctx, http.MethodGet, "/v1/reports/contracts.xlsx"+contractQuery(req))
}

// --- Signing ---

func (c *HTTPClient) ResolveToken(ctx context.Context, token string) (*workflow.SigningView, error) {
	var v workflow.SigningView
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sign/"+url.PathEscape(token), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *HTTPClient) SubmitSignature(ctx context.Context, token string, in *model.SignatureInput) (*workflow.SubmitResult, error) {
	var res workflow.SubmitResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sign/"+url.PathEscape(token), in, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Reason     string
	Fields     []model.FieldError
	Missing    []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	for _, f := range e.Fields {
		msg += "\n  " + f.Field + ": " + f.Message
	}
	if len(e.Missing) > 0 {
		msg += "\n  missing: " + strings.Join(e.Missing, ", ")
	}
	return msg
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set(actorHeader, c.actor)
	}
	return req, nil
}

// do performs the request and returns the body of a successful response.
func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error   string             `json:"error"`
			Reason  string             `json:"reason"`
			Fields  []model.FieldError `json:"fields"`
			Missing []string           `json:"missing"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Message:    errResp.Error,
				Reason:     errResp.Reason,
				Fields:     errResp.Fields,
				Missing:    errResp.Missing,
			}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return respBody, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// doRaw performs a GET and returns the undecoded response body.
func (c *HTTPClient) doRaw(ctx context.Context, method, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}
