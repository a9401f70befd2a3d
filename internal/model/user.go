package model

import "scamwatch/internal/store"

// UserType is the platform account kind.
type UserType string

const (
	UserBot     UserType = "Bot"
	UserDeleted UserType = "Deleted"
	UserRegular UserType = "Regular"
	UserUnknown UserType = "Unknown"
)

// User is a platform account as stored in the users collection.
type User struct {
	ID                int64
	FirstName         string
	LastName          string
	Username          string
	PhoneNumber       string
	IsVerified        bool
	IsSupport         bool
	RestrictionReason string
	// IsScam is the platform's own scam marker.
	IsScam bool
	Type   UserType
	// Scam is set by an administrator or by the new-user heuristics.
	Scam bool
	// Bypass is managed by operators only and never written back by the pipeline.
	Bypass bool
}

// Merge copies the identity fields of a fresh observation. The phone number
// is only taken when none was known.
func (u *User) Merge(fresh *User) {
	if u.PhoneNumber == "" {
		u.PhoneNumber = fresh.PhoneNumber
	}
	u.FirstName = fresh.FirstName
	u.LastName = fresh.LastName
	u.Username = fresh.Username
}

// CollectionName implements store.Record.
func (u *User) CollectionName() string { return UsersCollection }

// RecordID implements store.Record.
func (u *User) RecordID() int64 { return u.ID }

// Document implements store.Record. New users are never bypassed.
func (u *User) Document() (store.Document, error) {
	doc, _ := u.UpdateDocument()
	doc["id"] = u.ID
	doc["bypass"] = false
	return doc, nil
}

// UpdateDocument implements store.Record.
func (u *User) UpdateDocument() (store.Document, error) {
	return store.Document{
		"first_name":         u.FirstName,
		"last_name":          u.LastName,
		"username":           u.Username,
		"phone_number":       u.PhoneNumber,
		"is_verified":        u.IsVerified,
		"is_support":         u.IsSupport,
		"restriction_reason": u.RestrictionReason,
		"is_scam":            u.IsScam,
		"user_type":          string(u.Type),
		"scam":               u.Scam,
	}, nil
}

// UserFromDocument decodes a stored user. Missing fields take zero values.
func UserFromDocument(doc store.Document) *User {
	id, _ := doc.Int64("id")
	return &User{
		ID:                id,
		FirstName:         doc.String("first_name"),
		LastName:          doc.String("last_name"),
		Username:          doc.String("username"),
		PhoneNumber:       doc.String("phone_number"),
		IsVerified:        doc.Bool("is_verified"),
		IsSupport:         doc.Bool("is_support"),
		RestrictionReason: doc.String("restriction_reason"),
		IsScam:            doc.Bool("is_scam"),
		Type:              UserType(doc.String("user_type")),
		Scam:              doc.Bool("scam"),
		Bypass:            doc.Bool("bypass"),
	}
}
