package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"flaremail/models"
)

// MailboxClient reads and writes mailbox partitions in the remote realtime
// database. Records live under /mailboxes/{key}/{partition}/{id}.json and a
// whole partition is readable at /mailboxes/{key}/{partition}.json.
type MailboxClient struct {
	baseURL string
	client  *fasthttp.Client
	timeout time.Duration
}

// NewMailboxClient creates a client for the given database endpoint.
func NewMailboxClient(baseURL string) *MailboxClient {
	return &MailboxClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &fasthttp.Client{},
		timeout: defaultTimeout,
	}
}

func (c *MailboxClient) recordURL(key, partition, id string) string {
	return fmt.Sprintf("%s/mailboxes/%s/%s/%s.json", c.baseURL, key, partition, id)
}

func (c *MailboxClient) partitionURL(key, partition string) string {
	return fmt.Sprintf("%s/mailboxes/%s/%s.json", c.baseURL, key, partition)
}

// WriteMail stores a full mail record under the given partition.
func (c *MailboxClient) WriteMail(ctx context.Context, key, partition string, mail models.Mail) error {
	body, err := json.Marshal(mail)
	if err != nil {
		return err
	}
	return c.send(ctx, fasthttp.MethodPut, c.recordURL(key, partition, mail.ID), body, nil)
}

// ReadAll returns every record of a partition keyed by mail id. An empty
// partition comes back from the service as a JSON null.
func (c *MailboxClient) ReadAll(ctx context.Context, key, partition string) (map[string]models.Mail, error) {
	var raw []byte
	if err := c.send(ctx, fasthttp.MethodGet, c.partitionURL(key, partition), nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return map[string]models.Mail{}, nil
	}
	records := make(map[string]models.Mail)
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode partition %s/%s: %w", key, partition, err)
	}
	return records, nil
}

// Patch updates only the named fields of a record.
func (c *MailboxClient) Patch(ctx context.Context, key, partition, id string, fields map[string]interface{}) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return c.send(ctx, fasthttp.MethodPatch, c.recordURL(key, partition, id), body, nil)
}

// Delete removes a record from a partition.
func (c *MailboxClient) Delete(ctx context.Context, key, partition, id string) error {
	return c.send(ctx, fasthttp.MethodDelete, c.recordURL(key, partition, id), nil, nil)
}

func (c *MailboxClient) send(ctx context.Context, method, uri string, body []byte, out *[]byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	if err := do(ctx, c.client, req, resp, c.timeout); err != nil {
		return fmt.Errorf("mailbox request: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("mailbox service returned status %d", resp.StatusCode())
	}
	if out != nil {
		*out = append([]byte(nil), resp.Body()...)
	}
	return nil
}
