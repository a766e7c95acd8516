package core

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// TxType is the direction of a transaction.
type TxType string

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// ParseTxType validates a transaction type.
func ParseTxType(s string) (TxType, error) {
	switch t := TxType(strings.ToLower(strings.TrimSpace(s))); t {
	case Income, Expense:
		return t, nil
	default:
		return "", ErrInvalidType
	}
}

// Actor is the authenticated identity a request runs as. It is built once by
// the session layer and passed explicitly to every service call.
type Actor struct {
	UserID   int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanAccess reports whether the actor may read or modify a record owned by ownerID.
func CanAccess(a Actor, ownerID int64) bool {
	return a.IsAdmin() || (a.UserID != 0 && a.UserID == ownerID)
}

func (a Actor) CanAccess(ownerID int64) bool { return CanAccess(a, ownerID) }

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor returns the identity used for requests made by u.
func (u User) Actor() Actor {
	return Actor{UserID: u.ID, Username: u.Username, Role: u.Role}
}

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      TxType    `json:"type"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
}

const DefaultCategoryIcon = "📦"

type Transaction struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	Username           string    `json:"username"`
	Amount             Money     `json:"amount"`
	Type               TxType    `json:"type"`
	CategoryID         int64     `json:"category_id"`
	Category           string    `json:"category"`
	CategoryIcon       string    `json:"category_icon,omitempty"`
	Description        string    `json:"description"`
	Date               Date      `json:"date"`
	AttachmentFilename string    `json:"attachment_filename,omitempty"`
	AttachmentPath     string    `json:"attachment_path,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (t Transaction) HasAttachment() bool { return t.AttachmentPath != "" }

// Validate checks the invariants every stored transaction satisfies.
func (t Transaction) Validate() error {
	if t.UserID == 0 {
		return ErrMissingField
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Type != Income && t.Type != Expense {
		return ErrInvalidType
	}
	if t.CategoryID == 0 {
		return ErrUnknownCategory
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Attachment identifies a stored file. DisplayName is what the user uploaded,
// StorageKey is the name on disk.
type Attachment struct {
	DisplayName string
	StorageKey  string
}

// Session is a server side login. Role is copied from the user row when the
// session is created and never taken from the client.
type Session struct {
	ID         string
	UserID     int64
	Username   string
	Role       Role
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

func (s Session) Actor() Actor {
	return Actor{UserID: s.UserID, Username: s.Username, Role: s.Role}
}
