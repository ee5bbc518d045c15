package repository

import (
	"context"
	"errors"
	"time"

	"github.com/wrprafra/newsletter-project/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewsletterRepository handles newsletter data operations.
type NewsletterRepository struct {
	db *gorm.DB
}

// NewNewsletterRepository creates a new NewsletterRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *NewsletterRepository: repository instance bound to db.
func NewNewsletterRepository(db *gorm.DB) *NewsletterRepository {
	return &NewsletterRepository{db: db}
}

// CreateStub inserts a bare record for (emailID, userID) if none exists.
// Replays are no-ops, so the same Gmail id can be enqueued twice without
// clobbering enrichment written in between.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - emailID: Gmail message id.
//   - userID: owning user id.
//   - threadID: Gmail thread id, may be empty when unknown at stub time.
// Returns:
//   - error: non-nil if the insert fails.
func (r *NewsletterRepository) CreateStub(ctx context.Context, emailID, userID, threadID string) error {
	stub := domain.Newsletter{
		EmailID:  emailID,
		UserID:   userID,
		ThreadID: threadID,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&stub).Error
}

// GetByID retrieves a newsletter by its composite key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - emailID: Gmail message id.
//   - userID: owning user id.
// Returns:
//   - *domain.Newsletter: record if found.
//   - error: gorm.ErrRecordNotFound if absent, other errors on query failure.
func (r *NewsletterRepository) GetByID(ctx context.Context, emailID, userID string) (*domain.Newsletter, error) {
	var n domain.Newsletter
	if err := r.db.WithContext(ctx).First(&n, "email_id = ? AND user_id = ?", emailID, userID).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// Exists checks whether a record exists for (emailID, userID).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - emailID: Gmail message id.
//   - userID: owning user id.
// Returns:
//   - bool: true if a record exists.
//   - error: non-nil if the lookup fails.
func (r *NewsletterRepository) Exists(ctx context.Context, emailID, userID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Newsletter{}).
		Where("email_id = ? AND user_id = ?", emailID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ThreadExists checks whether the user already has any record in the thread,
// excluding a given email id. Best effort: the thread index is non-unique,
// so concurrent writers may still both pass this check.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user id.
//   - threadID: Gmail thread id.
//   - excludeEmailID: email id to leave out of the check; empty excludes none.
// Returns:
//   - bool: true if another record shares the thread.
//   - error: non-nil if the lookup fails.
func (r *NewsletterRepository) ThreadExists(ctx context.Context, userID, threadID, excludeEmailID string) (bool, error) {
	if threadID == "" {
		return false, nil
	}
	query := r.db.WithContext(ctx).Model(&domain.Newsletter{}).
		Where("user_id = ? AND thread_id = ?", userID, threadID)
	if excludeEmailID != "" {
		query = query.Where("email_id <> ?", excludeEmailID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateFields applies a partial update keyed by the composite key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - emailID: Gmail message id.
//   - userID: owning user id.
//   - fields: column name to value map.
// Returns:
//   - error: non-nil if the update fails.
func (r *NewsletterRepository) UpdateFields(ctx context.Context, emailID, userID string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&domain.Newsletter{}).
		Where("email_id = ? AND user_id = ?", emailID, userID).
		Updates(fields).Error
}

// FeedPage returns one raw page of feed rows in total order. Callers pass
// limit+1 to detect overflow and collapse threads afterwards.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user id.
//   - before: cursor timestamp; nil means newest page.
//   - beforeID: cursor email id tie-breaker; empty means newest page.
//   - limit: maximum rows to fetch.
//   - hiddenDomains: source domains excluded from the page.
//   - favoritesOnly: restrict to favorited rows.
// Returns:
//   - []domain.Newsletter: raw rows, newest first.
//   - error: non-nil if the query fails.
func (r *NewsletterRepository) FeedPage(ctx context.Context, userID string, before *time.Time, beforeID string, limit int, hiddenDomains []string, favoritesOnly bool) ([]domain.Newsletter, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("is_complete = ?", true).
		Where("is_deleted = ?", false).
		Where("received_date IS NOT NULL")

	if before != nil && beforeID != "" {
		query = query.Where("received_date < ? OR (received_date = ? AND email_id < ?)", *before, *before, beforeID)
	}
	if len(hiddenDomains) > 0 {
		query = query.Where("source_domain NOT IN ?", hiddenDomains)
	}
	if favoritesOnly {
		query = query.Where("is_favorite = ?", true)
	}

	var rows []domain.Newsletter
	if err := query.
		Order("received_date DESC, email_id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FilterNewIDs returns the subset of ids that have no record yet for the user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user id.
//   - ids: candidate Gmail message ids.
// Returns:
//   - []string: ids with no existing record, input order preserved.
//   - error: non-nil if the query fails.
func (r *NewsletterRepository) FilterNewIDs(ctx context.Context, userID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var existing []string
	if err := r.db.WithContext(ctx).Model(&domain.Newsletter{}).
		Where("user_id = ? AND email_id IN ?", userID, ids).
		Pluck("email_id", &existing).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	var fresh []string
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

// SetFavorite flips the favorite flag on a record.
func (r *NewsletterRepository) SetFavorite(ctx context.Context, emailID, userID string, favorite bool) error {
	return r.UpdateFields(ctx, emailID, userID, map[string]interface{}{"is_favorite": favorite})
}

// SetTag replaces the free-form tag on a record.
func (r *NewsletterRepository) SetTag(ctx context.Context, emailID, userID, tag string) error {
	return r.UpdateFields(ctx, emailID, userID, map[string]interface{}{"tag": tag})
}

// SetTypeTag replaces the type tag on a record.
func (r *NewsletterRepository) SetTypeTag(ctx context.Context, emailID, userID, typeTag string) error {
	return r.UpdateFields(ctx, emailID, userID, map[string]interface{}{"type_tag": typeTag})
}

// PropagateTypeByDomain rewrites the type tag on every one of the user's
// records whose source domain matches.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user id.
//   - sourceDomain: root domain the override targets.
//   - typeTag: replacement type tag.
// Returns:
//   - int64: number of rows updated.
//   - error: non-nil if the update fails.
func (r *NewsletterRepository) PropagateTypeByDomain(ctx context.Context, userID, sourceDomain, typeTag string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Newsletter{}).
		Where("user_id = ? AND source_domain = ?", userID, sourceDomain).
		Update("type_tag", typeTag)
	return res.RowsAffected, res.Error
}

// ListUnenriched returns records eligible for re-enqueueing.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user id; empty selects all users.
//   - includeIncomplete: also select enriched rows that never completed.
//   - limit: maximum records to return; 0 means no cap.
// Returns:
//   - []domain.Newsletter: matching records.
//   - error: non-nil if the query fails.
func (r *NewsletterRepository) ListUnenriched(ctx context.Context, userID string, includeIncomplete bool, limit int) ([]domain.Newsletter, error) {
	query := r.db.WithContext(ctx).Where("is_deleted = ?", false)
	if includeIncomplete {
		query = query.Where("enriched = ? OR is_complete = ?", false, false)
	} else {
		query = query.Where("enriched = ?", false)
	}
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []domain.Newsletter
	if err := query.Order("received_date DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FeedStats summarizes per-user record counts for diagnostics.
type FeedStats struct {
	Total    int64 `json:"total"`
	Complete int64 `json:"complete"`
	Enriched int64 `json:"enriched"`
	Deleted  int64 `json:"deleted"`
}

// Stats counts the user's records by lifecycle flags.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user id.
// Returns:
//   - *FeedStats: aggregate counts.
//   - error: non-nil if any count fails.
func (r *NewsletterRepository) Stats(ctx context.Context, userID string) (*FeedStats, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&domain.Newsletter{}).Where("user_id = ?", userID)
	}
	var s FeedStats
	if err := base().Count(&s.Total).Error; err != nil {
		return nil, err
	}
	if err := base().Where("is_complete = ? AND is_deleted = ?", true, false).Count(&s.Complete).Error; err != nil {
		return nil, err
	}
	if err := base().Where("enriched = ?", true).Count(&s.Enriched).Error; err != nil {
		return nil, err
	}
	if err := base().Where("is_deleted = ?", true).Count(&s.Deleted).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
