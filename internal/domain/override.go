package domain

import "time"

// DomainTypeOverride pins the type tag for every record a user receives
// from a given sender domain.
type DomainTypeOverride struct {
	UserID    string    `gorm:"type:text;primaryKey" json:"user_id"`
	Domain    string    `gorm:"type:text;primaryKey" json:"domain"`
	TypeTag   string    `gorm:"type:varchar(24);not null" json:"type_tag"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for DomainTypeOverride.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (DomainTypeOverride) TableName() string {
	return "domain_type_overrides"
}
