// Package remote talks to the sync service: plain JSON request/response
// per entity, no server-side transaction spanning entity types. Records
// arrive and leave with their sensitive fields already encrypted.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the HTTP client for one account.
type Client struct {
	baseURL   string
	accountID string
	deviceID  string
	http      *http.Client
}

// NewClient builds a client for the service at baseURL.
func NewClient(baseURL, accountID, deviceID string) *Client {
	return &Client{
		baseURL:   baseURL,
		accountID: accountID,
		deviceID:  deviceID,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Account-ID", c.accountID)
	req.Header.Set("X-Device-ID", c.deviceID)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

type addRequest[T any] struct {
	Records []T `json:"records"`
}

type listResponse[T any] struct {
	Records []T `json:"records"`
}

func add[T any](ctx context.Context, c *Client, entity string, records []T) error {
	if len(records) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/"+entity+"/add", addRequest[T]{Records: records}, nil)
}

func list[T any](ctx context.Context, c *Client, entity string) ([]T, error) {
	var resp listResponse[T]
	if err := c.do(ctx, http.MethodGet, "/"+entity, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func update[T any](ctx context.Context, c *Client, entity string, id int64, record T) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/update/%d", entity, id), record, nil)
}

func (c *Client) remove(ctx context.Context, entity string, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/remove/%d", entity, id), nil, nil)
}

// AddConversations uploads one page of conversation records.
func (c *Client) AddConversations(ctx context.Context, records []ConversationRecord) error {
	return add(ctx, c, "conversations", records)
}

// ListConversations fetches every conversation record of the account.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationRecord, error) {
	return list[ConversationRecord](ctx, c, "conversations")
}

// UpdateConversation replaces one conversation record.
func (c *Client) UpdateConversation(ctx context.Context, r ConversationRecord) error {
	return update(ctx, c, "conversations", r.ID, r)
}

// DeleteConversation removes one conversation record.
func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	return c.remove(ctx, "conversations", id)
}

// AddMessages uploads one page of message records.
func (c *Client) AddMessages(ctx context.Context, records []MessageRecord) error {
	return add(ctx, c, "messages", records)
}

// ListMessages fetches every message record of the account.
func (c *Client) ListMessages(ctx context.Context) ([]MessageRecord, error) {
	return list[MessageRecord](ctx, c, "messages")
}

// UpdateMessage replaces one message record.
func (c *Client) UpdateMessage(ctx context.Context, r MessageRecord) error {
	return update(ctx, c, "messages", r.ID, r)
}

// DeleteMessage removes one message record.
func (c *Client) DeleteMessage(ctx context.Context, id int64) error {
	return c.remove(ctx, "messages", id)
}

// AddDrafts uploads one page of draft records.
func (c *Client) AddDrafts(ctx context.Context, records []DraftRecord) error {
	return add(ctx, c, "drafts", records)
}

// ListDrafts fetches every draft record of the account.
func (c *Client) ListDrafts(ctx context.Context) ([]DraftRecord, error) {
	return list[DraftRecord](ctx, c, "drafts")
}

// DeleteDraft removes one draft record.
func (c *Client) DeleteDraft(ctx context.Context, id int64) error {
	return c.remove(ctx, "drafts", id)
}

// AddScheduled uploads one page of scheduled message records.
func (c *Client) AddScheduled(ctx context.Context, records []ScheduledRecord) error {
	return add(ctx, c, "scheduled_messages", records)
}

// ListScheduled fetches every scheduled message record of the account.
func (c *Client) ListScheduled(ctx context.Context) ([]ScheduledRecord, error) {
	return list[ScheduledRecord](ctx, c, "scheduled_messages")
}

// UpdateScheduled replaces one scheduled message record.
func (c *Client) UpdateScheduled(ctx context.Context, r ScheduledRecord) error {
	return update(ctx, c, "scheduled_messages", r.ID, r)
}

// DeleteScheduled removes one scheduled message record.
func (c *Client) DeleteScheduled(ctx context.Context, id int64) error {
	return c.remove(ctx, "scheduled_messages", id)
}

// AddContacts uploads one page of contact records.
func (c *Client) AddContacts(ctx context.Context, records []ContactRecord) error {
	return add(ctx, c, "contacts", records)
}

// ListContacts fetches every contact record of the account.
func (c *Client) ListContacts(ctx context.Context) ([]ContactRecord, error) {
	return list[ContactRecord](ctx, c, "contacts")
}
