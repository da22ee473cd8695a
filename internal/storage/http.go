package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultStoreTimeout = 30 * time.Second

// HTTPStore writes objects to an HTTP object-store endpoint. Objects land
// under <base>/<batchID>/<filename>.
type HTTPStore struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPStore(baseURL string) (*HTTPStore, error) {
	client := resty.New()
	client.SetTimeout(defaultStoreTimeout)
	client.SetRetryCount(0)

	return NewHTTPStoreWithClient(baseURL, client)
}

func NewHTTPStoreWithClient(baseURL string, client *resty.Client) (*HTTPStore, error) {
	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		return nil, fmt.Errorf("storage base url is required")
	}
	if _, err := url.ParseRequestURI(trimmedBase); err != nil {
		return nil, fmt.Errorf("invalid storage base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultStoreTimeout)
	}

	return &HTTPStore{
		client:  client,
		baseURL: trimmedBase,
	}, nil
}

func (s *HTTPStore) Put(ctx context.Context, batchID, filename string, data []byte) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is not initialized")
	}
	if strings.TrimSpace(batchID) == "" {
		return &StorageError{Message: "batch id is required"}
	}
	if strings.TrimSpace(filename) == "" {
		return &StorageError{Message: "filename is required"}
	}

	objectURL := fmt.Sprintf("%s/%s/%s", s.baseURL, url.PathEscape(batchID), url.PathEscape(filename))

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		Put(objectURL)
	if err != nil {
		return &StorageError{
			Message: "storage request failed",
			Cause:   err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return &StorageError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("storage returned status %d: %s", statusCode, strings.TrimSpace(response.String())),
		}
	}

	return nil
}
