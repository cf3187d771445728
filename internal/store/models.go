package store

import "time"

// Status values shared by cards, sub-cards, and file items.
const (
	StatusLive     = "live"
	StatusDisabled = "disabled"
	StatusDraft    = "draft"
)

type Org struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

type User struct {
	ID                    string
	OrgID                 string
	DisplayName           string
	Email                 string
	PasswordHash          string
	Role                  string
	Department            string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	DeactivatedAt         *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CardTemplate is an admin-authored blueprint. Cards copy its display
// fields at instantiation time; there is no live link back.
type CardTemplate struct {
	ID          string
	OrgID       string
	Title       string
	Description string
	HeroImage   string
	Status      string
	CreatedBy   string
	CreatedAt   time.Time
}

// Card is a published content unit. LabelCount is a derived cache of the
// live child count; it is only ever written by a full recount, never
// incremented in place.
type Card struct {
	ID               string
	OrgID            string
	TemplateID       string
	Title            string
	Description      string
	HeroImage        string
	LabelCount       int
	Status           string
	Deleted          bool
	PurgeRequestedAt *time.Time
	LastUpdated      time.Time
	CreatedAt        time.Time
}

type SubCard struct {
	ID          string
	OrgID       string
	CardID      string
	Title       string
	Description string
	HeroImage   string
	Status      string
	CreatedAt   time.Time
}

type FileItem struct {
	ID          string
	OrgID       string
	CardID      string
	Name        string
	StoragePath string
	Size        int64
	ContentType string
	FileType    string
	Status      string
	LastUpdated time.Time
	CreatedAt   time.Time
}

type CardView struct {
	ID       int64
	OrgID    string
	CardID   string
	ViewedBy string
	ViewedAt time.Time
}

// UsageSummary is the light analytics rollup for an org: plain counts only.
type UsageSummary struct {
	Cards      int
	LiveCards  int
	SubCards   int
	FileItems  int
	TotalViews int
}
