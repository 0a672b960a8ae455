package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/frahmantamala/payment-portal/internal/report"
	"github.com/frahmantamala/payment-portal/internal/request"
	"github.com/frahmantamala/payment-portal/internal/user"
)

const (
	FallbackLogin        = "Login failed"
	FallbackRegistration = "Registration failed"
)

type LoginResult struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        *user.User `json:"user"`
}

// Login posts the credentials as a form, the way the API's token endpoint expects.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	resp, err := c.do(ctx, call{
		endpoint:    "login",
		method:      http.MethodPost,
		path:        "/api/auth/login",
		body:        bytes.NewBufferString(form.Encode()),
		contentType: "application/x-www-form-urlencoded",
		fallback:    FallbackLogin,
	})
	if err != nil {
		return nil, err
	}

	var result LoginResult
	if err := decode(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if result.AccessToken == "" || result.User == nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: FallbackLogin}
	}
	return &result, nil
}

func (c *Client) Register(ctx context.Context, dto user.RegisterDTO) (*user.User, error) {
	var created user.User
	err := c.doJSON(ctx, call{
		endpoint: "register",
		method:   http.MethodPost,
		path:     "/api/auth/register",
		fallback: FallbackRegistration,
	}, dto, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

type ListParams struct {
	Status request.Status
	Skip   int
	Limit  int
}

func (c *Client) ListRequests(ctx context.Context, params ListParams) ([]request.PaymentRequest, error) {
	q := url.Values{}
	if params.Status != "" {
		q.Set("status", string(params.Status))
	}
	if params.Skip > 0 {
		q.Set("skip", strconv.Itoa(params.Skip))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	path := "/api/requests"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var requests []request.PaymentRequest
	err := c.doJSON(ctx, call{endpoint: "list_requests", method: http.MethodGet, path: path, fallback: "Failed to load requests"}, nil, &requests)
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// Upload is a supporting document attached to a new request.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

type NewRequest struct {
	RequestType          request.Type
	Amount               float64
	Description          string
	RequestedPaymentDate string
	Files                []Upload
}

// CreateRequest submits a request as multipart form data.
func (c *Client) CreateRequest(ctx context.Context, in NewRequest) (*request.PaymentRequest, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"request_type", string(in.RequestType)},
		{"amount", strconv.FormatFloat(in.Amount, 'f', -1, 64)},
		{"description", in.Description},
	}
	if in.RequestedPaymentDate != "" {
		fields = append(fields, [2]string{"requested_payment_date", in.RequestedPaymentDate})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to encode form: %w", err)
		}
	}
	for _, file := range in.Files {
		part, err := mw.CreateFormFile("supporting_documents", file.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}

	resp, err := c.do(ctx, call{
		endpoint:    "create_request",
		method:      http.MethodPost,
		path:        "/api/requests",
		body:        &buf,
		contentType: mw.FormDataContentType(),
		fallback:    "Failed to submit request",
	})
	if err != nil {
		return nil, err
	}

	var created request.PaymentRequest
	if err := decode(resp.Body, &created); err != nil {
		return nil, fmt.Errorf("failed to decode created request: %w", err)
	}
	return &created, nil
}

func (c *Client) GetRequest(ctx context.Context, id string) (*request.PaymentRequest, error) {
	var found request.PaymentRequest
	err := c.doJSON(ctx, call{
		endpoint: "get_request",
		method:   http.MethodGet,
		path:     "/api/requests/" + url.PathEscape(id),
		fallback: "Failed to load request",
	}, nil, &found)
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// DecideRequest sends an approve or reject decision.
func (c *Client) DecideRequest(ctx context.Context, id string, decision request.Decision, comments string) (*request.PaymentRequest, error) {
	body := request.DecisionDTO{Status: decision.Status(), Comments: comments}

	var updated request.PaymentRequest
	err := c.doJSON(ctx, call{
		endpoint: "decide_request",
		method:   http.MethodPut,
		path:     "/api/requests/" + url.PathEscape(id) + "/approve",
		fallback: "Failed to update request",
	}, body, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) Analytics(ctx context.Context) (*report.Analytics, error) {
	var analytics report.Analytics
	err := c.doJSON(ctx, call{
		endpoint: "analytics",
		method:   http.MethodGet,
		path:     "/api/reports/analytics",
		fallback: "Failed to load analytics data",
	}, nil, &analytics)
	if err != nil {
		return nil, err
	}
	return &analytics, nil
}

// Document is a binary download returned by the report endpoints.
type Document struct {
	ContentType string
	FileName    string
	Data        []byte
}

func (c *Client) Summary(ctx context.Context) (*Document, error) {
	resp, err := c.do(ctx, call{
		endpoint: "summary",
		method:   http.MethodGet,
		path:     "/api/reports/summary",
		fallback: "Failed to generate report",
	})
	if err != nil {
		return nil, err
	}
	return document(resp), nil
}

func (c *Client) Paycheck(ctx context.Context, id string) (*Document, error) {
	resp, err := c.do(ctx, call{
		endpoint: "paycheck",
		method:   http.MethodGet,
		path:     "/api/reports/paycheck/" + url.PathEscape(id),
		fallback: "Failed to generate paycheck",
	})
	if err != nil {
		return nil, err
	}
	return document(resp), nil
}

func document(resp *response) *Document {
	doc := &Document{
		ContentType: resp.Header.Get("Content-Type"),
		Data:        resp.Body,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		doc.FileName = params["filename"]
	}
	return doc
}
