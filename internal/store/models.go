package store

import (
	"time"

	"github.com/google/uuid"
)

// ShareKind discriminates document shares from folder shares.
type ShareKind string

const (
	ShareKindDoc    ShareKind = "doc"
	ShareKindFolder ShareKind = "folder"
)

// Visibility controls who may read a share without membership.
type Visibility string

const (
	VisibilityPrivate   Visibility = "private"
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
)

// Role is a per-share membership role. The owner role is implicit on the
// share's owner; site admins bypass membership entirely.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
)

// DeliveryStatus is the lifecycle state of a webhook delivery.
type DeliveryStatus string

const (
	DeliveryPending            DeliveryStatus = "pending"
	DeliverySuccess            DeliveryStatus = "success"
	DeliveryFailed             DeliveryStatus = "failed"
	DeliveryMaxRetriesExceeded DeliveryStatus = "max_retries_exceeded"
)

// EmailStatus is the lifecycle state of a queued email.
type EmailStatus string

const (
	EmailPending EmailStatus = "pending"
	EmailSent    EmailStatus = "sent"
	EmailFailed  EmailStatus = "failed"
)

type User struct {
	ID            uuid.UUID
	Email         string
	PasswordHash  string // empty iff the user has a linked OAuth account
	IsAdmin       bool
	IsActive      bool
	EmailVerified bool
	TOTPSecret    string
	TOTPEnabled   bool
	BackupCodes   []BackupCode
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BackupCode is a single-use 2FA recovery code, stored hashed.
type BackupCode struct {
	Hash string `json:"hash"`
	Used bool   `json:"used"`
}

type UserSession struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	RefreshTokenHash string
	DeviceName       string
	UserAgent        string
	IPAddress        string
	LastActivity     time.Time
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

type OAuthProvider struct {
	ID                    uuid.UUID
	Name                  string
	IssuerURL             string
	ClientID              string
	ClientSecretEncrypted string
	Enabled               bool
	AutoRegister          bool
}

type UserOAuthAccount struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ProviderID     uuid.UUID
	ProviderUserID string
	Email          string
	Name           string
	PictureURL     string
}

type Share struct {
	ID           uuid.UUID
	Kind         ShareKind
	Path         string
	Visibility   Visibility
	PasswordHash string // required iff visibility=protected
	OwnerUserID  uuid.UUID
	WebPublished bool
	WebSlug      string
	WebNoindex   bool
	WebContent   string
	WebDocID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ShareMember struct {
	ID        uuid.UUID
	ShareID   uuid.UUID
	UserID    uuid.UUID
	Role      Role
	CreatedAt time.Time
}

type ShareInvite struct {
	ID        uuid.UUID
	ShareID   uuid.UUID
	Token     string
	Role      Role
	ExpiresAt *time.Time
	MaxUses   *int32
	UseCount  int32
	RevokedAt *time.Time
	CreatedBy uuid.UUID
	Email     string
	CreatedAt time.Time
}

// ActionTokenKind separates password-reset tokens from email-verification
// tokens in a single table.
type ActionTokenKind string

const (
	TokenPasswordReset     ActionTokenKind = "password_reset"
	TokenEmailVerification ActionTokenKind = "email_verification"
)

type ActionToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      ActionTokenKind
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
}

type Webhook struct {
	ID           uuid.UUID
	UserID       *uuid.UUID // nil means admin/global scope
	Name         string
	URL          string
	Secret       string
	Events       []string
	Active       bool
	FailureCount int32
	CreatedAt    time.Time
}

type WebhookDelivery struct {
	ID                 uuid.UUID
	WebhookID          uuid.UUID
	EventID            uuid.UUID
	EventType          string
	Payload            []byte
	Status             DeliveryStatus
	ResponseStatusCode *int32
	ResponseBody       string
	AttemptCount       int32
	NextRetryAt        *time.Time
	CreatedAt          time.Time
}

type QueuedEmail struct {
	ID           uuid.UUID
	ToEmail      string
	Subject      string
	BodyText     string
	BodyHTML     string
	EmailType    string
	Status       EmailStatus
	AttemptCount int32
	ErrorMessage string
	NextRetryAt  *time.Time
	SentAt       *time.Time
	CreatedAt    time.Time
}

type AuditEntry struct {
	ID            uuid.UUID
	Timestamp     time.Time
	Action        string
	ActorUserID   *uuid.UUID
	TargetUserID  *uuid.UUID
	TargetShareID *uuid.UUID
	Details       []byte // JSON
	IPAddress     string
	UserAgent     string
}

type EmailPreferences struct {
	UserID                   uuid.UUID
	InviteNotifications      bool
	ShareUpdateNotifications bool
	MemberNotifications      bool
	SecurityAlerts           bool // always honored as true by the dispatcher
	DigestEmails             bool
}
