package repository

import (
	"context"

	"github.com/wrprafra/newsletter-project/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OverrideRepository handles domain type override operations.
type OverrideRepository struct {
	db *gorm.DB
}

// NewOverrideRepository creates a new OverrideRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *OverrideRepository: repository instance bound to db.
func NewOverrideRepository(db *gorm.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// Upsert creates or replaces the override for (userID, domain).
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - o: override record to persist.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *OverrideRepository) Upsert(ctx context.Context, o *domain.DomainTypeOverride) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "domain"}},
		DoUpdates: clause.AssignmentColumns([]string{"type_tag", "updated_at"}),
	}).Create(o).Error
}

// Get retrieves the override for (userID, domain), if any.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user id.
//   - dom: sender root domain.
// Returns:
//   - *domain.DomainTypeOverride: override if found, nil if absent.
//   - error: non-nil if the lookup fails.
func (r *OverrideRepository) Get(ctx context.Context, userID, dom string) (*domain.DomainTypeOverride, error) {
	var o domain.DomainTypeOverride
	err := r.db.WithContext(ctx).First(&o, "user_id = ? AND domain = ?", userID, dom).Error
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// ListByUser retrieves all overrides for a user.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user id.
// Returns:
//   - []domain.DomainTypeOverride: the user's overrides.
//   - error: non-nil if the query fails.
func (r *OverrideRepository) ListByUser(ctx context.Context, userID string) ([]domain.DomainTypeOverride, error) {
	var out []domain.DomainTypeOverride
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
