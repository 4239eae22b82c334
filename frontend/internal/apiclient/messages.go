package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

// SendMessageInput is forwarded as-is. Which of TextContent and MediaURL a
// MessageType needs is the server's call. A nil field is left out of the body;
// a pointer to "" is sent as an empty string.
type SendMessageInput struct {
	MessageType domain.MessageType `json:"message_type"`
	TextContent *string            `json:"text_content,omitempty"`
	MediaURL    *string            `json:"media_url,omitempty"`
}

// String returns a pointer to s for the optional SendMessageInput fields.
func String(s string) *string { return &s }

type ListMessagesOption func(url.Values)

// WithLimit caps how many of the newest messages the server returns.
func WithLimit(n int) ListMessagesOption {
	return func(q url.Values) {
		if n > 0 {
			q.Set("limit", strconv.Itoa(n))
		}
	}
}

// ListMessages returns a room's messages in server order; never nil.
func (c *Client) ListMessages(ctx context.Context, chatroomID string, opts ...ListMessagesOption) ([]domain.Message, error) {
	q := url.Values{}
	for _, opt := range opts {
		opt(q)
	}

	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	req := &Request{
		Method: http.MethodGet,
		Path:   chatroomPath(chatroomID, "/messages"),
		Route:  "/chatrooms/{id}/messages",
		Query:  q,
	}
	if err := c.call(ctx, req, &out); err != nil {
		return nil, err
	}
	if out.Messages == nil {
		out.Messages = []domain.Message{}
	}
	return out.Messages, nil
}

func (c *Client) SendMessage(ctx context.Context, chatroomID string, in SendMessageInput) (*domain.Message, error) {
	var out struct {
		Message domain.Message `json:"message"`
	}
	req := &Request{
		Method: http.MethodPost,
		Path:   chatroomPath(chatroomID, "/messages"),
		Route:  "/chatrooms/{id}/messages",
		Body:   in,
	}
	if err := c.call(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}
