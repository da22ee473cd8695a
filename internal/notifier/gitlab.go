package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultNotifyTimeout = 10 * time.Second

type noteRequest struct {
	Body string `json:"body"`
}

// GitLabNotifier posts completion replies as notes on the noteable the
// trigger comment came from.
type GitLabNotifier struct {
	client  *resty.Client
	baseURL string
	token   string
}

func NewGitLabNotifier(baseURL, token string) (*GitLabNotifier, error) {
	client := resty.New()
	client.SetTimeout(defaultNotifyTimeout)
	client.SetRetryCount(0)

	return NewGitLabNotifierWithClient(baseURL, token, client)
}

func NewGitLabNotifierWithClient(baseURL, token string, client *resty.Client) (*GitLabNotifier, error) {
	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		return nil, fmt.Errorf("gitlab base url is required")
	}
	if _, err := url.ParseRequestURI(trimmedBase); err != nil {
		return nil, fmt.Errorf("invalid gitlab base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultNotifyTimeout)
	}

	return &GitLabNotifier{
		client:  client,
		baseURL: trimmedBase,
		token:   strings.TrimSpace(token),
	}, nil
}

func (n *GitLabNotifier) Notify(ctx context.Context, thread Thread, msg Message) error {
	if n == nil || n.client == nil {
		return fmt.Errorf("notifier is not initialized")
	}
	if err := thread.Validate(); err != nil {
		return &DeliveryError{Message: fmt.Sprintf("invalid thread: %v", err)}
	}

	body := strings.TrimSpace(msg.Body)
	if body == "" {
		return &DeliveryError{Message: "message body is required"}
	}
	if len(msg.Attachment) > 0 {
		body = fmt.Sprintf("%s\n\n**%s**\n```csv\n%s\n```", body, msg.AttachmentName, strings.TrimSpace(string(msg.Attachment)))
	}

	endpoint := fmt.Sprintf(
		"%s/api/v4/projects/%d/%s/%d/notes",
		n.baseURL, thread.ProjectID, noteablePath(thread.NoteableType), thread.NoteableIID,
	)

	request := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(noteRequest{Body: body})
	if n.token != "" {
		request.SetHeader("PRIVATE-TOKEN", n.token)
	}

	response, err := request.Post(endpoint)
	if err != nil {
		return &DeliveryError{
			Message: "note post failed",
			Cause:   err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return &DeliveryError{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("gitlab returned status %d: %s", statusCode, strings.TrimSpace(response.String())),
		}
	}

	return nil
}

func noteablePath(noteableType string) string {
	switch strings.ToLower(strings.TrimSpace(noteableType)) {
	case "mergerequest", "merge_request":
		return "merge_requests"
	default:
		return "issues"
	}
}
