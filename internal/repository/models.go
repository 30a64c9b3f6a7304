package repository

import "time"

// User roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is a CRM account
type User struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"`
	Role         string        `json:"role"`
	Permissions  []*Permission `json:"permissions,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Permission is a (module, action) grant
type Permission struct {
	ID        int64     `json:"id"`
	Module    string    `json:"module"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// CatalogEntry is a row of a name-only lookup table (services, statuses)
type CatalogEntry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedBy *int64    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lead is a prospective customer
type Lead struct {
	ID             int64     `json:"id"`
	Name           *string   `json:"name"`
	CompanyName    *string   `json:"company_name"`
	Location       *string   `json:"location"`
	Phone          *string   `json:"phone"`
	Email          *string   `json:"email"`
	ServiceID      int64     `json:"service_id"`
	StatusID       int64     `json:"status_id"`
	AssignedUserID int64     `json:"assigned_user_id"`
	CreatedBy      *int64    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Joined names, filled by list queries
	ServiceName  string `json:"service_name,omitempty"`
	StatusName   string `json:"status_name,omitempty"`
	AssignedName string `json:"assigned_user_name,omitempty"`
}

// LeadDetail is a follow-up entry on a lead
type LeadDetail struct {
	ID                  int64      `json:"id"`
	LeadID              int64      `json:"lead_id"`
	CallFollowupDate    time.Time  `json:"call_followup_date"`
	CallFollowupSummary string     `json:"call_followup_summary"`
	NextCallDate        *time.Time `json:"next_call_date"`
	CalledAt            *time.Time `json:"called_at"`
	CreatedBy           *int64     `json:"created_by"`
	AssignedTo          *int64     `json:"assigned_to"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	// Owning lead, filled by dashboard and call-log queries
	Lead *Lead `json:"lead,omitempty"`
}

// CallTracking is a single phone call session
type CallTracking struct {
	ID                  int64          `json:"id"`
	LeadID              int64          `json:"lead_id"`
	UserID              int64          `json:"user_id"`
	LeadDetailID        *int64         `json:"lead_detail_id"`
	PhoneNumber         string         `json:"phone_number"`
	CallID              string         `json:"call_id"`
	CallStartedAt       *time.Time     `json:"call_started_at"`
	CallEndedAt         *time.Time     `json:"call_ended_at"`
	CallDurationSeconds int64          `json:"call_duration_seconds"`
	CallStatus          string         `json:"call_status"`
	CallSummary         *string        `json:"call_summary"`
	AudioRecordingPath  *string        `json:"audio_recording_path"`
	CallMetadata        map[string]any `json:"call_metadata"`
	DeviceType          string         `json:"device_type"`
	DeviceID            *string        `json:"device_id"`
	IsAutoDialed        bool           `json:"is_auto_dialed"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// CallStats aggregates call trackings for the stats endpoint
type CallStats struct {
	TotalCalls      int64         `json:"total_calls"`
	CompletedCalls  int64         `json:"completed_calls"`
	TotalDuration   int64         `json:"total_duration"`
	AverageDuration float64       `json:"average_duration"`
	CallsByStatus   []StatusCount `json:"calls_by_status"`
	CallsByDay      []DayCount    `json:"calls_by_day"`
}

type StatusCount struct {
	CallStatus string `json:"call_status"`
	Count      int64  `json:"count"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// LeadStatusCount is the number of leads carrying a status
type LeadStatusCount struct {
	StatusID   int64  `json:"status_id"`
	StatusName string `json:"status_name"`
	Count      int64  `json:"count"`
}

// Page describes a slice of a paginated listing
type Page struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

// NewPage computes pagination metadata. page is clamped to at least 1.
func NewPage(page, perPage int, total int64) Page {
	if page < 1 {
		page = 1
	}
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		last = 1
	}
	return Page{CurrentPage: page, PerPage: perPage, Total: total, LastPage: last}
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	return (p.CurrentPage - 1) * p.PerPage
}
