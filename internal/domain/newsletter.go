package domain

import "time"

// Newsletter is one processed email for one user. The composite key
// (email_id, user_id) keeps the same Gmail message independent per user.
type Newsletter struct {
	EmailID         string     `gorm:"type:text;primaryKey" json:"email_id"`
	UserID          string     `gorm:"type:text;primaryKey;index:idx_newsletters_feed,priority:1;index:idx_newsletters_fav,priority:1;index:idx_newsletters_thread,priority:1" json:"user_id"`
	SenderName      string     `gorm:"type:text" json:"sender_name"`
	SenderEmail     string     `gorm:"type:text" json:"sender_email"`
	OriginalSubject string     `gorm:"type:text" json:"original_subject"`
	AITitle         string     `gorm:"column:ai_title;type:text" json:"ai_title"`
	AISummary       string     `gorm:"column:ai_summary_markdown;type:text" json:"ai_summary_markdown"`
	ImageURL        string     `gorm:"type:text" json:"image_url"`
	FullContentHTML string     `gorm:"column:full_content_html;type:text" json:"full_content_html,omitempty"`
	ReceivedDate    *time.Time `gorm:"index:idx_newsletters_feed,priority:4,sort:desc;index:idx_newsletters_fav,priority:4,sort:desc" json:"received_date"`
	IsFavorite      bool       `gorm:"default:false;index:idx_newsletters_fav,priority:2" json:"is_favorite"`
	Enriched        bool       `gorm:"default:false" json:"enriched"`
	IsComplete      bool       `gorm:"default:false;index:idx_newsletters_feed,priority:2" json:"is_complete"`
	IsDeleted       bool       `gorm:"default:false;index:idx_newsletters_feed,priority:3" json:"is_deleted"`
	AccentHex       string     `gorm:"type:text" json:"accent_hex,omitempty"`
	Tag             string     `gorm:"type:varchar(32)" json:"tag,omitempty"`
	TypeTag         string     `gorm:"type:varchar(24)" json:"type_tag,omitempty"`
	TopicTag        string     `gorm:"type:varchar(32)" json:"topic_tag,omitempty"`
	SourceDomain    string     `gorm:"type:text" json:"source_domain,omitempty"`
	ThreadID        string     `gorm:"type:text;index:idx_newsletters_thread,priority:2" json:"thread_id,omitempty"`
	RFC822MessageID string     `gorm:"column:rfc822_message_id;type:text" json:"rfc822_message_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Newsletter.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Newsletter) TableName() string {
	return "newsletters"
}

// Visible reports whether the record may appear in the feed.
func (n *Newsletter) Visible() bool {
	return n.IsComplete && !n.IsDeleted && n.ReceivedDate != nil
}
