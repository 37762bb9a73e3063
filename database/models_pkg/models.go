package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Roles a user can hold
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Call statuses. A call only moves forward through these; nothing returns to pending.
const (
	StatusPendingVerification = "PENDING_VERIFICATION"
	StatusApproved            = "APPROVED"
	StatusRejected            = "REJECTED"
	StatusActive              = "ACTIVE"
	StatusTargetHit           = "TARGET_HIT"
	StatusStopLossHit         = "STOP_LOSS_HIT"
)

// Call actions and instrument types
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"

	TypeEquity     = "Equity"
	TypeDerivative = "Derivative"
)

// NotificationTypeCallStatus is the only notification type emitted today
const NotificationTypeCallStatus = "CALL_STATUS"

// User is a registered account.
//
// Key Fields:
//   - Email: unique, stored lower-cased and trimmed
//   - PasswordHash: bcrypt hash, never serialised
//   - Role: "user" or "admin"
//   - Watchlist: ordered broker names, replaced wholesale on update
//   - GoogleID: optional external identity, unique when present
type User struct {
	ID           int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string         `gorm:"size:320;uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Name         string         `gorm:"size:120;not null" json:"name"`
	Role         string         `gorm:"size:10;not null;default:user" json:"role"`
	Watchlist    pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"watchlist"`
	GoogleID     *string        `gorm:"size:64;uniqueIndex" json:"googleId,omitempty"`
	Avatar       string         `gorm:"size:512" json:"avatar,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "rmb_users"
}

// Creator is the public projection of a user joined onto a call
type Creator struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OutcomeEntry records a status reached on a given date
type OutcomeEntry struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}

// NewsItem links an article relevant to the call
type NewsItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Comment is a free-text remark on a call
type Comment struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// Attachment references an uploaded file
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Call is a broker's recommendation with target and stop-loss prices.
// Creator is populated only by queries that join the creating user.
type Call struct {
	ID             int64                             `gorm:"primaryKey;autoIncrement" json:"id"`
	Stock          string                            `gorm:"size:32;index;not null" json:"stock"`
	Broker         string                            `gorm:"size:120;index;not null" json:"broker"`
	CreatorID      int64                             `gorm:"index;not null" json:"creatorId"`
	Creator        *User                             `gorm:"foreignKey:CreatorID" json:"-"`
	Action         string                            `gorm:"size:4;not null" json:"action"`
	Type           string                            `gorm:"size:16;not null;default:Equity" json:"type"`
	Status         string                            `gorm:"size:24;index;not null" json:"status"`
	Target         float64                           `gorm:"type:decimal(15,2);not null" json:"target"`
	StopLoss       float64                           `gorm:"type:decimal(15,2);not null" json:"stopLoss"`
	EntryDate      string                            `gorm:"size:32;not null" json:"entryDate"`
	ExpiryDate     string                            `gorm:"size:32;not null" json:"expiryDate"`
	CurrentPrice   float64                           `gorm:"type:decimal(15,2);not null" json:"currentPrice"`
	Rationale      string                            `gorm:"type:text" json:"rationale,omitempty"`
	RiskReward     string                            `gorm:"size:32" json:"riskReward,omitempty"`
	Tags           pq.StringArray                    `gorm:"type:text[]" json:"tags"`
	PriceHistory   datatypes.JSONSlice[float64]      `json:"priceHistory"`
	OutcomeHistory datatypes.JSONSlice[OutcomeEntry] `json:"outcomeHistory"`
	News           datatypes.JSONSlice[NewsItem]     `json:"news"`
	Comments       datatypes.JSONSlice[Comment]      `json:"comments"`
	Attachments    datatypes.JSONSlice[Attachment]   `json:"attachments"`
	CreatedAt      time.Time                         `json:"createdAt"`
	UpdatedAt      time.Time                         `json:"updatedAt"`
}

// TableName specifies the table name for Call
func (Call) TableName() string {
	return "rmb_calls"
}

// CallView is the JSON shape of a call, with the creator projection when joined
type CallView struct {
	*Call
	Creator *Creator `json:"creator,omitempty"`
}

// View returns the serialisable form of the call
func (c *Call) View() CallView {
	v := CallView{Call: c}
	if c.Creator != nil {
		v.Creator = &Creator{ID: c.Creator.ID, Name: c.Creator.Name, Email: c.Creator.Email}
	}
	return v
}

// Notification tells a user something happened to one of their calls
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"userId"`
	CallID    int64     `gorm:"index;not null" json:"callId"`
	Type      string    `gorm:"size:32;not null" json:"type"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// TableName specifies the table name for Notification
func (Notification) TableName() string {
	return "rmb_notifications"
}

// BlacklistedToken is a revoked auth token kept until its natural expiry
type BlacklistedToken struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Token     string    `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

// TableName specifies the table name for BlacklistedToken
func (BlacklistedToken) TableName() string {
	return "rmb_blacklisted_tokens"
}
