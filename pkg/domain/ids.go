package domain

import (
	"github.com/google/uuid"

	dErrors "equilens/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types keep tenant, audit, and user IDs
// from being swapped silently at call sites.
//
// Invariant: IDs must be valid, non-nil UUIDs. Construct via the ParseX
// functions at trust boundaries; direct casting bypasses validation.
type (
	TenantID uuid.UUID
	AuditID  uuid.UUID
	UserID   uuid.UUID
)

// NewAuditID returns a fresh random audit identifier.
func NewAuditID() AuditID { return AuditID(uuid.New()) }

func (id TenantID) String() string { return uuid.UUID(id).String() }
func (id AuditID) String() string  { return uuid.UUID(id).String() }
func (id UserID) String() string   { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps IDs as canonical UUID strings in JSON payloads;
// defined types do not inherit uuid.UUID's methods.
func (id TenantID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id AuditID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *TenantID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AuditID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be a valid UUID", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", kind)
	}
	return u, nil
}

// ParseTenantID constructs a TenantID from external input.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s, "tenant ID")
	return TenantID(u), err
}

// ParseAuditID constructs an AuditID from external input.
func ParseAuditID(s string) (AuditID, error) {
	u, err := parseUUID(s, "audit ID")
	return AuditID(u), err
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}
