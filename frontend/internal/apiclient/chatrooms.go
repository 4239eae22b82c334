package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

func chatroomPath(id, suffix string) string {
	return "/chatrooms/" + url.PathEscape(id) + suffix
}

// ListChatrooms returns the rooms in server order; never nil.
func (c *Client) ListChatrooms(ctx context.Context) ([]domain.Chatroom, error) {
	var out struct {
		Chatrooms []domain.Chatroom `json:"chatrooms"`
	}
	if err := c.call(ctx, &Request{Method: http.MethodGet, Path: "/chatrooms"}, &out); err != nil {
		return nil, err
	}
	if out.Chatrooms == nil {
		out.Chatrooms = []domain.Chatroom{}
	}
	return out.Chatrooms, nil
}

func (c *Client) CreateChatroom(ctx context.Context, name string) (*domain.Chatroom, error) {
	var out struct {
		Chatroom domain.Chatroom `json:"chatroom"`
	}
	req := &Request{
		Method: http.MethodPost,
		Path:   "/chatrooms",
		Body:   map[string]string{"name": name},
	}
	if err := c.call(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out.Chatroom, nil
}

func (c *Client) JoinChatroom(ctx context.Context, id string) error {
	req := &Request{
		Method: http.MethodPost,
		Path:   chatroomPath(id, "/join"),
		Route:  "/chatrooms/{id}/join",
	}
	return c.call(ctx, req, nil)
}
