package store

import "time"

type User struct {
	ID                    int64
	Email                 string
	PasswordHash          string
	FirstName             string
	LastName              string
	Role                  string
	Phone                 string
	CompanyName           string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Property struct {
	ID           int64
	Address      string
	Postcode     string
	Price        float64
	Status       string
	PropertyType string
	Bedrooms     int
	Bathrooms    int
	Tenure       string
	Description  string

	BuyerID           *int64
	SellerID          *int64
	BuyerSolicitorID  *int64
	SellerSolicitorID *int64
	EstateAgentID     *int64

	TimelineLocked          bool
	BuyerSolicitorApproved  bool
	SellerSolicitorApproved bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Stage struct {
	ID              int64
	PropertyID      int64
	Name            string
	Status          string
	Description     string
	ResponsibleRole string
	SortOrder       int
	StartDate       *time.Time
	DueDate         *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Message struct {
	ID              int64
	PropertyID      int64
	StageID         *int64
	SenderID        int64
	RecipientID     *int64
	OriginalContent string
	FilteredContent string
	ApprovedContent *string
	ApprovalStatus  string
	// Status mirrors ApprovalStatus for older clients that still read it.
	Status     string
	ApprovedBy *int64
	ApprovedAt *time.Time
	CreatedAt  time.Time
}

type Notification struct {
	ID         int64
	UserID     int64
	PropertyID *int64
	Type       string
	Message    string
	Read       bool
	CreatedAt  time.Time
}

type StageExplanation struct {
	ID          int64
	Stage       string
	Role        string
	Explanation string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Document struct {
	ID               int64
	PropertyID       int64
	UploadedBy       int64
	Filename         string
	OriginalFilename string
	DocumentType     string
	ObjectKey        string
	Size             int64
	ReviewStatus     string
	ReviewedBy       *int64
	ReviewedAt       *time.Time
	UploadedAt       time.Time
}

type PasswordReset struct {
	ID        int64
	UserID    int64
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
