// Package messenger implements the client for the outbound messaging
// provider used to deliver payment receipts. Delivery is best effort, the
// payments service never fails a transaction on a messaging error.
package messenger

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/ordana/payments/libs/clients"
	appctx "github.com/ordana/payments/libs/context"
)

const (
	mediaCacheTTL     = 30 * time.Minute
	mediaCacheCleanup = time.Hour
)

// Client abstracts over the messaging provider endpoints.
type Client interface {
	SendText(ctx context.Context, to, text string) error
	SendDocument(ctx context.Context, to, filename string, document []byte) error
}

// HTTPClient wraps the messaging provider API over a SimpleHTTPClient. Media
// uploads are cached by filename so re-sent receipts reuse the media id.
type HTTPClient struct {
	client *clients.SimpleHTTPClient
	media  *cache.Cache
}

// New returns an instrumented messenger Client.
func New(serverURL, authToken string) (Client, error) {
	simple, err := clients.NewInstrumented("messenger", serverURL, authToken)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		client: simple,
		media:  cache.New(mediaCacheTTL, mediaCacheCleanup),
	}, nil
}

// NewWithContext pulls server and token from the context.
func NewWithContext(ctx context.Context) (Client, error) {
	serverURL, err := appctx.GetStringFromContext(ctx, appctx.MessengerServerCTXKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get messenger server from context: %w", err)
	}
	authToken, err := appctx.GetStringFromContext(ctx, appctx.MessengerTokenCTXKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get messenger token from context: %w", err)
	}
	return New(serverURL, authToken)
}

// NewWithHTTPClient is a test constructor taking an explicit http.Client.
func NewWithHTTPClient(serverURL, authToken string, client *http.Client) (Client, error) {
	simple, err := clients.NewWithHTTPClient(serverURL, authToken, client)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		client: simple,
		media:  cache.New(mediaCacheTTL, mediaCacheCleanup),
	}, nil
}

type textMessageRequest struct {
	To   string `json:"to"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type documentMessageRequest struct {
	To      string `json:"to"`
	Type    string `json:"type"`
	MediaID string `json:"media_id"`
}

type mediaUploadRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type mediaUploadResponse struct {
	MediaID string `json:"media_id"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// SendText delivers a plain text message to the recipient.
func (c *HTTPClient) SendText(ctx context.Context, to, text string) error {
	req, err := c.client.NewRequest(ctx, http.MethodPost, "/v1/messages", &textMessageRequest{
		To:   to,
		Type: "text",
		Text: text,
	}, nil)
	if err != nil {
		return err
	}

	var body sendResponse
	resp, err := c.client.Do(ctx, req, &body)
	if err != nil {
		return fmt.Errorf("failed to send text message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return nil
}

// SendDocument uploads the document when not already cached and sends it as
// a media message.
func (c *HTTPClient) SendDocument(ctx context.Context, to, filename string, document []byte) error {
	mediaID, err := c.uploadMedia(ctx, filename, document)
	if err != nil {
		return err
	}

	req, err := c.client.NewRequest(ctx, http.MethodPost, "/v1/messages", &documentMessageRequest{
		To:      to,
		Type:    "document",
		MediaID: mediaID,
	}, nil)
	if err != nil {
		return err
	}

	var body sendResponse
	resp, err := c.client.Do(ctx, req, &body)
	if err != nil {
		return fmt.Errorf("failed to send document message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return nil
}

func (c *HTTPClient) uploadMedia(ctx context.Context, filename string, document []byte) (string, error) {
	if cached, ok := c.media.Get(filename); ok {
		return cached.(string), nil
	}

	req, err := c.client.NewRequest(ctx, http.MethodPost, "/v1/media", &mediaUploadRequest{
		Filename: filename,
		Content:  base64.StdEncoding.EncodeToString(document),
	}, nil)
	if err != nil {
		return "", err
	}

	var body mediaUploadResponse
	resp, err := c.client.Do(ctx, req, &body)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.media.Set(filename, body.MediaID, cache.DefaultExpiration)
	return body.MediaID, nil
}
