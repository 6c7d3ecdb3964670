package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"social-chat-service/internal/models"
)

// REST is the HTTP twin of the realtime channel: the same message operations
// plus the snapshot fetches the reconciler rebuilds from after a gap.
type REST struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewREST constructs a REST client for the given base URL and bearer token.
func NewREST(baseURL, token string) *REST {
	return &REST{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ConversationView is one entry of the conversation list.
type ConversationView struct {
	ID           int                 `json:"id"`
	Participants []int               `json:"participants"`
	Friend       *models.UserPreview `json:"friend,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	LastMessage  *models.Message     `json:"lastMessage,omitempty"`
}

// StartConversation creates or fetches the conversation with another user.
func (c *REST) StartConversation(ctx context.Context, otherUserID int) (ConversationView, error) {
	var view ConversationView
	err := c.do(ctx, http.MethodPost, "/conversations",
		map[string]any{"otherUserId": otherUserID}, &view)
	return view, err
}

// ListConversations fetches the caller's conversation list with previews.
func (c *REST) ListConversations(ctx context.Context) ([]ConversationView, error) {
	var resp struct {
		Conversations []ConversationView `json:"conversations"`
	}
	err := c.do(ctx, http.MethodGet, "/conversations", nil, &resp)
	return resp.Conversations, err
}

// ConversationIDs implements ConversationLister for rejoin passes.
func (c *REST) ConversationIDs(ctx context.Context) ([]int, error) {
	views, err := c.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(views))
	for _, view := range views {
		ids = append(ids, view.ID)
	}
	return ids, nil
}

// ListMessages fetches a conversation's full message log.
func (c *REST) ListMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/conversations/%d/messages", conversationID), nil, &resp)
	return resp.Messages, err
}

// SendMessage posts a message over the HTTP path.
func (c *REST) SendMessage(ctx context.Context, conversationID int, content string, replyToID *int) (models.Message, error) {
	var msg models.Message
	body := map[string]any{"content": content}
	if replyToID != nil {
		body["replyToId"] = *replyToID
	}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/conversations/%d/messages", conversationID), body, &msg)
	return msg, err
}

// EditMessage replaces a message's content.
func (c *REST) EditMessage(ctx context.Context, messageID int, content string) (models.Message, error) {
	var msg models.Message
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/messages/%d", messageID),
		map[string]any{"content": content}, &msg)
	return msg, err
}

// DeleteMessage soft-deletes a message and returns the tombstone.
func (c *REST) DeleteMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/messages/%d", messageID), nil, &msg)
	return msg, err
}

// Presence fetches a user's presence snapshot.
func (c *REST) Presence(ctx context.Context, userID int) (models.Presence, error) {
	var presence models.Presence
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/presence/%d", userID), nil, &presence)
	return presence, err
}

func (c *REST) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
