package models

import "time"

// ClientInfo is the request metadata a session is bound to.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type Session struct {
	TokenHash    []byte
	AccountID    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	LastAccessAt time.Time
	IPAddress    *string
	UserAgent    *string
}

// Bound reports whether a binding snapshot was captured at issuance.
func (s Session) Bound() bool {
	return s.IPAddress != nil || s.UserAgent != nil
}

// Binding returns the stored snapshot with nulls read as empty strings.
func (s Session) Binding() ClientInfo {
	var info ClientInfo
	if s.IPAddress != nil {
		info.IP = *s.IPAddress
	}
	if s.UserAgent != nil {
		info.UserAgent = *s.UserAgent
	}
	return info
}

// SessionRecord is a session joined to its owning account.
type SessionRecord struct {
	Session Session
	Account AdminAccount
}

func NullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
