package classifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultClassifyTimeout = 30 * time.Second

type classifyResponse struct {
	Label string `json:"label"`
}

// HTTPClassifier calls an inference HTTP endpoint with raw image bytes.
type HTTPClassifier struct {
	client   *resty.Client
	endpoint string
}

func NewHTTPClassifier(endpoint string) (*HTTPClassifier, error) {
	client := resty.New()
	client.SetTimeout(defaultClassifyTimeout)
	client.SetRetryCount(0)

	return NewHTTPClassifierWithClient(endpoint, client)
}

func NewHTTPClassifierWithClient(endpoint string, client *resty.Client) (*HTTPClassifier, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("classifier endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid classifier endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultClassifyTimeout)
	}

	return &HTTPClassifier{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (c *HTTPClassifier) Classify(ctx context.Context, image []byte) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("classifier is not initialized")
	}
	if len(image) == 0 {
		return "", &ClassifierError{Message: "empty image payload"}
	}

	var parsed classifyResponse
	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(image).
		SetResult(&parsed).
		Post(c.endpoint)
	if err != nil {
		return "", &ClassifierError{
			Message: "classifier request failed",
			Cause:   err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return "", &ClassifierError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("classifier returned status %d: %s", statusCode, strings.TrimSpace(response.String())),
		}
	}

	return NormalizeLabel(parsed.Label), nil
}
