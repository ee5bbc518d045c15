package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/wrprafra/newsletter-project/internal/retry"
)

const (
	// See https://developers.google.com/gmail/api/v1/reference/quota
	quotaUnitsPerMessagesList = 1
	quotaUnitsPerMessagesGet  = 5

	quotaUnitsPerSecond = 250
	rateLimitPerSecond  = quotaUnitsPerSecond * 0.8
	rateLimitBurst      = quotaUnitsPerSecond
)

// ErrMessageNotFound means the Gmail id no longer resolves to a message.
var ErrMessageNotFound = errors.New("gmail message not found")

// ListPage is one page of message ids from a list call.
type ListPage struct {
	IDs           []MessageRef
	NextPageToken string
}

// MessageRef pairs a Gmail message id with its thread id.
type MessageRef struct {
	ID       string
	ThreadID string
}

// Client wraps the Gmail API for one authenticated user, pacing calls
// against the per-user quota units.
type Client struct {
	service *gmailapi.Service
	limiter *rate.Limiter
	policy  retry.Policy
}

// NewClient builds a Client from an OAuth config and token.
// Parameters:
//   - ctx: context bounding the underlying HTTP client.
//   - conf: OAuth config able to refresh the token.
//   - tok: current token for the user.
// Returns:
//   - *Client: ready client.
//   - error: non-nil if service construction fails.
func NewClient(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (*Client, error) {
	httpClient := oauth2.NewClient(ctx, conf.TokenSource(ctx, tok))
	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Client{
		service: svc,
		limiter: rate.NewLimiter(rateLimitPerSecond, rateLimitBurst),
		policy:  retry.DefaultPolicy(),
	}, nil
}

// IsRetryable reports whether a Gmail API error is transient.
func IsRetryable(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// List fetches one page of message ids matching query.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - query: Gmail search query.
//   - pageToken: continuation token, empty for the first page.
//   - max: page size cap.
// Returns:
//   - *ListPage: ids with thread ids and the next page token.
//   - error: non-nil after the retry budget is exhausted.
func (c *Client) List(ctx context.Context, query, pageToken string, max int64) (*ListPage, error) {
	var page *ListPage
	err := retry.Do(ctx, c.policy, IsRetryable, func() error {
		if err := c.limiter.WaitN(ctx, quotaUnitsPerMessagesList); err != nil {
			return err
		}
		call := c.service.Users.Messages.List("me").Q(query).MaxResults(max).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}
		refs := make([]MessageRef, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			refs = append(refs, MessageRef{ID: m.Id, ThreadID: m.ThreadId})
		}
		page = &ListPage{IDs: refs, NextPageToken: resp.NextPageToken}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Get fetches one full message.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: Gmail message id.
// Returns:
//   - *gmailapi.Message: full message with payload, labels, internalDate.
//   - error: ErrMessageNotFound for dead ids, other errors on failure.
func (c *Client) Get(ctx context.Context, id string) (*gmailapi.Message, error) {
	var msg *gmailapi.Message
	err := retry.Do(ctx, c.policy, IsRetryable, func() error {
		if err := c.limiter.WaitN(ctx, quotaUnitsPerMessagesGet); err != nil {
			return err
		}
		m, err := c.service.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
				return fmt.Errorf("message %s: %w", id, ErrMessageNotFound)
			}
			return fmt.Errorf("failed to get message %s: %w", id, err)
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// InternalTime converts Gmail's internalDate milliseconds to UTC.
func InternalTime(msg *gmailapi.Message) *time.Time {
	if msg == nil || msg.InternalDate == 0 {
		return nil
	}
	t := time.UnixMilli(msg.InternalDate).UTC()
	return &t
}

// HasLabel reports whether the message carries the label id.
func HasLabel(msg *gmailapi.Message, label string) bool {
	for _, l := range msg.LabelIds {
		if l == label {
			return true
		}
	}
	return false
}
