// Package quote forwards premium calculations to the pricing collaborator.
// No rating logic lives here.
package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/validate"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

// Calculator prices a quote request.
type Calculator interface {
	Calculate(ctx context.Context, req models.QuoteRequest) (models.Quote, error)
}

// Path is the calculation endpoint, relative to the pricing base URL.
const Path = "/quote/calculate"

// Client calls a pricing service over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for the pricing service at baseURL.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

// Calculate validates req locally and posts it to the pricing service.
func (c *Client) Calculate(ctx context.Context, req models.QuoteRequest) (models.Quote, error) {
	if err := validate.Quote(req); err != nil {
		return models.Quote{}, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return models.Quote{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+Path, bytes.NewReader(body))
	if err != nil {
		return models.Quote{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return models.Quote{}, apperr.Wrap(apperr.KindCollaborator, "quote.calculate", "pricing service unavailable", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode/100 != 2 {
		return models.Quote{}, apperr.New(apperr.KindCollaborator, "quote.calculate", serverMessage(resp.StatusCode, raw))
	}
	return decode(raw)
}

// Invoker is the subset of the Lambda client used to call the pricing function.
type Invoker interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// Function calls the pricing Lambda directly. The server uses it to serve
// the calculation endpoint.
type Function struct {
	API  Invoker
	Name string
}

// Calculate validates req locally and invokes the pricing function.
func (f Function) Calculate(ctx context.Context, req models.QuoteRequest) (models.Quote, error) {
	if err := validate.Quote(req); err != nil {
		return models.Quote{}, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return models.Quote{}, err
	}
	out, err := f.API.Invoke(ctx, &lambda.InvokeInput{
		FunctionName: aws.String(f.Name),
		Payload:      payload,
	})
	if err != nil {
		return models.Quote{}, apperr.Wrap(apperr.KindCollaborator, "quote.calculate", "pricing function unavailable", err)
	}
	if out.FunctionError != nil {
		return models.Quote{}, apperr.New(apperr.KindCollaborator, "quote.calculate",
			fmt.Sprintf("pricing function failed: %s", aws.ToString(out.FunctionError)))
	}
	return decode(out.Payload)
}

func decode(raw []byte) (models.Quote, error) {
	var q models.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return models.Quote{}, apperr.Wrap(apperr.KindCollaborator, "quote.calculate", "malformed pricing response", err)
	}
	return q, nil
}

// serverMessage extracts {"error": "..."} from a failed response, falling
// back to the status text.
func serverMessage(status int, raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("pricing service returned %d", status)
}
