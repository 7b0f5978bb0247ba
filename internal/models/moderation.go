package models

import "time"

// Report target types.
const (
	ReportTargetPost      = "post"
	ReportTargetComment   = "comment"
	ReportTargetUser      = "user"
	ReportTargetTradeItem = "trade_item"
)

// Report statuses.
const (
	ReportOpen      = "open"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

// Resolution actions an admin can take on a report.
const (
	ResolveDismiss     = "dismiss"
	ResolveHideContent = "hide_content"
	ResolveBanUser     = "ban_user"
)

// ModerationReport is a user's complaint about a piece of content or an account.
type ModerationReport struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ReporterID     uint       `gorm:"not null;index" json:"reporter_id"`
	Reporter       *User      `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	TargetType     string     `gorm:"not null;size:20;index:idx_reports_target" json:"target_type"`
	TargetID       uint       `gorm:"not null;index:idx_reports_target" json:"target_id"`
	ReportedUserID *uint      `gorm:"index" json:"reported_user_id,omitempty"`
	Reason         string     `gorm:"not null;size:100" json:"reason"`
	Details        string     `gorm:"size:2000" json:"details"`
	Status         string     `gorm:"not null;size:20;default:open;index" json:"status"`
	ResolvedBy     *uint      `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolutionNote string     `gorm:"size:1000" json:"resolution_note"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	Users              int64            `json:"users"`
	DeletedUsers       int64            `json:"deleted_users"`
	BannedUsers        int64            `json:"banned_users"`
	Posts              int64            `json:"posts"`
	Comments           int64            `json:"comments"`
	ActiveListings     int64            `json:"active_listings"`
	OrdersByStatus     map[string]int64 `json:"orders_by_status"`
	OpenReports        int64            `json:"open_reports"`
	GrossMerchandiseCt int64            `json:"gross_merchandise_cents"`
}
