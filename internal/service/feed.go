package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wrprafra/newsletter-project/internal/domain"
	"github.com/wrprafra/newsletter-project/internal/repository"
	"github.com/wrprafra/newsletter-project/internal/settings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ErrBadCursor means the client sent a cursor this server never issued.
var ErrBadCursor = errors.New("malformed feed cursor")

// FeedPage is one page of the feed in newest-first order.
type FeedPage struct {
	Items      []domain.Newsletter `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
	HasMore    bool                `json:"has_more"`
}

// FeedService reads the newsletter feed with seek pagination and
// read-time thread collapsing.
type FeedService struct {
	repo     *repository.NewsletterRepository
	settings *settings.Store
}

// NewFeedService creates a FeedService.
// Parameters:
//   - repo: newsletter repository.
//   - st: per-user settings store; may be nil when no hidden domains apply.
// Returns:
//   - *FeedService: ready service.
func NewFeedService(repo *repository.NewsletterRepository, st *settings.Store) *FeedService {
	return &FeedService{repo: repo, settings: st}
}

// EncodeCursor builds the opaque page cursor from a row's sort key.
func EncodeCursor(received time.Time, emailID string) string {
	return received.UTC().Format(time.RFC3339Nano) + "|" + emailID
}

// DecodeCursor parses a cursor back into its sort key.
// Parameters:
//   - cursor: value from a previous page's next_cursor.
// Returns:
//   - time.Time: received-date component, UTC.
//   - string: email id component.
//   - error: ErrBadCursor on any malformed input.
func DecodeCursor(cursor string) (time.Time, string, error) {
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return time.Time{}, "", ErrBadCursor
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	return t.UTC(), parts[1], nil
}

// GetPage returns one feed page. The cursor advances over RAW rows, so
// rows hidden by thread collapsing still move the window and no row is
// ever revisited or skipped.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: requesting user.
//   - pageSize: requested page size; clamped to 1..100, 0 means default.
//   - before: cursor from the previous page, empty for the newest page.
//   - favoritesOnly: restrict to favorited rows.
// Returns:
//   - *FeedPage: collapsed page with continuation cursor.
//   - error: ErrBadCursor or query failure.
func (s *FeedService) GetPage(ctx context.Context, userID string, pageSize int, before string, favoritesOnly bool) (*FeedPage, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var cursorTime *time.Time
	var cursorID string
	if before != "" {
		t, id, err := DecodeCursor(before)
		if err != nil {
			return nil, err
		}
		cursorTime = &t
		cursorID = id
	}

	var hidden []string
	if s.settings != nil {
		if userSettings, err := s.settings.Get(userID); err == nil {
			hidden = userSettings.HiddenDomains
		}
	}

	rows, err := s.repo.FeedPage(ctx, userID, cursorTime, cursorID, pageSize+1, hidden, favoritesOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed page: %w", err)
	}

	hasMore := len(rows) > pageSize
	if hasMore {
		rows = rows[:pageSize]
	}

	page := &FeedPage{
		Items:   CollapseThreads(rows),
		HasMore: hasMore,
	}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		if last.ReceivedDate != nil {
			page.NextCursor = EncodeCursor(*last.ReceivedDate, last.EmailID)
		}
	}
	return page, nil
}

// CollapseThreads keeps the first row per thread id; rows without a
// thread id always surface.
// Parameters:
//   - rows: raw page rows in feed order.
// Returns:
//   - []domain.Newsletter: collapsed rows, order preserved.
func CollapseThreads(rows []domain.Newsletter) []domain.Newsletter {
	out := make([]domain.Newsletter, 0, len(rows))
	seen := make(map[string]bool)
	for _, row := range rows {
		if row.ThreadID != "" {
			if seen[row.ThreadID] {
				continue
			}
			seen[row.ThreadID] = true
		}
		out = append(out, row)
	}
	return out
}

// GetItem returns one record for the requesting user, for SSE-driven
// single-card refresh.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - emailID: Gmail message id.
//   - userID: requesting user.
// Returns:
//   - *domain.Newsletter: the record.
//   - error: gorm not-found or query failure.
func (s *FeedService) GetItem(ctx context.Context, emailID, userID string) (*domain.Newsletter, error) {
	return s.repo.GetByID(ctx, emailID, userID)
}
