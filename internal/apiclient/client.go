// Package apiclient is the console side of the API: a typed HTTP client,
// session persistence, and a Console that caches queries and refreshes them
// after mutations.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/auth"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/validate"

	"github.com/shopspring/decimal"
)

// Client calls the operations API.
type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// New returns a client for the API at baseURL. A nil hc uses http.DefaultClient.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc, now: time.Now}
}

// PolicyQuery filters a policy listing. Status may be a policy status or ALL.
type PolicyQuery struct {
	UserID string
	Status string
}

func (q PolicyQuery) encode() string {
	v := url.Values{}
	if q.UserID != "" {
		v.Set("userId", q.UserID)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	return v.Encode()
}

// ClaimQuery filters a claim listing. Status may be a claim status or ALL.
type ClaimQuery struct {
	PolicyID string
	Status   string
}

func (q ClaimQuery) encode() string {
	v := url.Values{}
	if q.PolicyID != "" {
		v.Set("policyId", q.PolicyID)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	return v.Encode()
}

type list[T any] struct {
	Items []T `json:"items"`
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if err := validate.Username(username); err != nil {
		return Session{}, err
	}
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, nil, http.MethodPost, "/auth/login", body, &out); err != nil {
		return Session{}, err
	}
	return NewSession(out.Token, c.now())
}

// Register creates an account. s may be nil for anonymous sign-up.
func (c *Client) Register(ctx context.Context, s *Session, in auth.RegisterInput) (models.User, error) {
	if err := validate.All(
		func() error { return validate.Email(strings.ToLower(strings.TrimSpace(in.Email))) },
		func() error { return validate.Password(in.Password) },
		func() error { return validate.Role(in.Role) },
	); err != nil {
		return models.User{}, err
	}
	var u models.User
	err := c.do(ctx, s, http.MethodPost, "/auth/register", in, &u)
	return u, err
}

// Health reports dependency status. It answers even when a dependency is down.
func (c *Client) Health(ctx context.Context) (models.Health, error) {
	var h models.Health
	err := c.do(ctx, nil, http.MethodGet, "/health", nil, &h)
	if err != nil && !isUnavailable(err) {
		return models.Health{}, err
	}
	return h, nil
}

// Table fetches the transition table the server enforces.
func (c *Client) Table(ctx context.Context) (*lifecycle.Table, error) {
	var out struct {
		Rules []lifecycle.Rule `json:"rules"`
	}
	if err := c.do(ctx, nil, http.MethodGet, "/lifecycle/table", nil, &out); err != nil {
		return nil, err
	}
	return lifecycle.NewTable(out.Rules), nil
}

// ListPolicies lists policies visible to s.
func (c *Client) ListPolicies(ctx context.Context, s Session, q PolicyQuery) ([]models.Policy, error) {
	if _, ok := models.ParsePolicyStatus(q.Status); !ok {
		return nil, apperr.Validation("unknown policy status " + q.Status)
	}
	var out list[models.Policy]
	err := c.do(ctx, &s, http.MethodGet, withQuery("/policies", q.encode()), nil, &out)
	return out.Items, err
}

// GetPolicy fetches one policy.
func (c *Client) GetPolicy(ctx context.Context, s Session, id string) (models.Policy, error) {
	var p models.Policy
	err := c.do(ctx, &s, http.MethodGet, "/policies/"+url.PathEscape(id), nil, &p)
	return p, err
}

// CreatePolicy creates an ACTIVE policy.
func (c *Client) CreatePolicy(ctx context.Context, s Session, in lifecycle.CreatePolicyInput) (models.Policy, error) {
	if err := in.Validate(); err != nil {
		return models.Policy{}, err
	}
	var p models.Policy
	err := c.do(ctx, &s, http.MethodPost, "/policies", in, &p)
	return p, err
}

// RenewPolicy extends a policy's term.
func (c *Client) RenewPolicy(ctx context.Context, s Session, id string, extendMonths int) (models.Policy, error) {
	if err := validate.PositiveInt("extendMonths", extendMonths); err != nil {
		return models.Policy{}, err
	}
	return c.policyAction(ctx, s, id, "renew", map[string]int{"extendMonths": extendMonths})
}

// SuspendPolicy suspends a policy with a reason.
func (c *Client) SuspendPolicy(ctx context.Context, s Session, id, reason string) (models.Policy, error) {
	if err := validate.Reason(reason); err != nil {
		return models.Policy{}, err
	}
	return c.policyAction(ctx, s, id, "suspend", map[string]string{"reason": reason})
}

// ReinstatePolicy reinstates a suspended policy.
func (c *Client) ReinstatePolicy(ctx context.Context, s Session, id string) (models.Policy, error) {
	return c.policyAction(ctx, s, id, "reinstate", nil)
}

// CancelPolicy cancels a policy.
func (c *Client) CancelPolicy(ctx context.Context, s Session, id string) (models.Policy, error) {
	return c.policyAction(ctx, s, id, "cancel", nil)
}

func (c *Client) policyAction(ctx context.Context, s Session, id, verb string, body any) (models.Policy, error) {
	var p models.Policy
	err := c.do(ctx, &s, http.MethodPost, "/policies/"+url.PathEscape(id)+"/"+verb, body, &p)
	return p, err
}

// ListClaims lists claims visible to s.
func (c *Client) ListClaims(ctx context.Context, s Session, q ClaimQuery) ([]models.Claim, error) {
	if _, ok := models.ParseClaimStatus(q.Status); !ok {
		return nil, apperr.Validation("unknown claim status " + q.Status)
	}
	var out list[models.Claim]
	err := c.do(ctx, &s, http.MethodGet, withQuery("/claims", q.encode()), nil, &out)
	return out.Items, err
}

// GetClaim fetches one claim.
func (c *Client) GetClaim(ctx context.Context, s Session, id string) (models.Claim, error) {
	var cl models.Claim
	err := c.do(ctx, &s, http.MethodGet, "/claims/"+url.PathEscape(id), nil, &cl)
	return cl, err
}

// CreateClaim opens a DRAFT claim.
func (c *Client) CreateClaim(ctx context.Context, s Session, policyID, description string) (models.Claim, error) {
	if strings.TrimSpace(policyID) == "" {
		return models.Claim{}, apperr.Validation("policyId required")
	}
	if err := validate.Description(description); err != nil {
		return models.Claim{}, err
	}
	var cl models.Claim
	body := map[string]string{"policyId": policyID, "description": description}
	err := c.do(ctx, &s, http.MethodPost, "/claims", body, &cl)
	return cl, err
}

// SubmitClaim submits a DRAFT claim.
func (c *Client) SubmitClaim(ctx context.Context, s Session, id string) (models.Claim, error) {
	var cl models.Claim
	err := c.do(ctx, &s, http.MethodPost, "/claims/"+url.PathEscape(id)+"/submit", nil, &cl)
	return cl, err
}

// AdjudicateClaim approves or denies a submitted claim.
func (c *Client) AdjudicateClaim(ctx context.Context, s Session, id string, decision models.ClaimStatus, payout *decimal.Decimal) (models.Claim, error) {
	if err := validate.All(
		func() error { return validate.Decision(decision) },
		func() error { return validate.Payout(payout) },
	); err != nil {
		return models.Claim{}, err
	}
	var cl models.Claim
	body := map[string]any{"decision": decision, "payoutAmount": payout}
	err := c.do(ctx, &s, http.MethodPost, "/claims/"+url.PathEscape(id)+"/adjudicate", body, &cl)
	return cl, err
}

// PresignUpload asks for an upload target for a claim document.
func (c *Client) PresignUpload(ctx context.Context, s Session, claimID, filename, contentType string) (models.UploadTarget, error) {
	if err := validate.All(
		func() error { return validate.Filename(filename) },
		func() error { return validate.ContentType(contentType) },
	); err != nil {
		return models.UploadTarget{}, err
	}
	var t models.UploadTarget
	body := map[string]string{"filename": filename}
	if contentType != "" {
		body["contentType"] = contentType
	}
	err := c.do(ctx, &s, http.MethodPost, "/docs/"+url.PathEscape(claimID)+"/presign-upload", body, &t)
	return t, err
}

// ListDocuments lists a claim's documents.
func (c *Client) ListDocuments(ctx context.Context, s Session, claimID string) ([]models.DocumentInfo, error) {
	var out list[models.DocumentInfo]
	err := c.do(ctx, &s, http.MethodGet, "/docs/"+url.PathEscape(claimID)+"/list", nil, &out)
	return out.Items, err
}

// DownloadLink resolves a presigned download URL.
func (c *Client) DownloadLink(ctx context.Context, s Session, key string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, &s, http.MethodGet, withQuery("/docs/presign-download", url.Values{"key": {key}}.Encode()), nil, &out)
	return out.URL, err
}

// Upload transfers body to a presigned target, sending every header the
// target was signed with. contentType is sent verbatim and must equal the one
// the target was signed with; storage rejects anything else. A non-2xx answer
// is an Upload error carrying the response body.
func (c *Client) Upload(ctx context.Context, target models.UploadTarget, body []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.URL, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindUpload, "upload", "invalid upload target", err)
	}
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindUpload, "upload", "upload failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return apperr.New(apperr.KindUpload, "upload",
			fmt.Sprintf("upload rejected (%d): %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	return nil
}

// do performs one API call. A session that is expired locally fails before
// any request is made.
func (c *Client) do(ctx context.Context, s *Session, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s != nil {
		if !s.Valid(c.now()) {
			return apperr.New(apperr.KindAuthentication, "", "session expired")
		}
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.KindCollaborator, method+" "+path, "service unreachable", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return apperr.Wrap(apperr.KindCollaborator, method+" "+path, "reading response", err)
	}

	if resp.StatusCode/100 != 2 {
		failure := responseError(method+" "+path, resp.StatusCode, raw)
		if resp.StatusCode == http.StatusServiceUnavailable && out != nil {
			// Health answers 503 with a full report.
			_ = json.Unmarshal(raw, out)
		}
		return failure
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(apperr.KindCollaborator, method+" "+path, "malformed response", err)
	}
	return nil
}

// responseError classifies a non-2xx answer, keeping the server's message.
func responseError(op string, status int, raw []byte) error {
	var body struct {
		Error string `json:"error"`
	}
	msg := http.StatusText(status)
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	e := apperr.New(apperr.KindCollaborator, op, msg)
	switch status {
	case http.StatusUnauthorized:
		e.Kind = apperr.KindAuthentication
	case http.StatusForbidden:
		e.Kind = apperr.KindAuthorization
	}
	e.Err = statusError(status)
	return e
}

type statusError int

func (s statusError) Error() string { return fmt.Sprintf("status %d", int(s)) }

func isUnavailable(err error) bool {
	var s statusError
	return errors.As(err, &s) && int(s) == http.StatusServiceUnavailable
}

func withQuery(path, q string) string {
	if q == "" {
		return path
	}
	return path + "?" + q
}
