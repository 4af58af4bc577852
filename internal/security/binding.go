package security

import "bistro/auth/internal/models"

// BindingCheck is the outcome of comparing a session's binding snapshot with
// the metadata of the client presenting it.
type BindingCheck struct {
	Bound             bool
	IPMismatch        bool
	UserAgentMismatch bool
}

func (c BindingCheck) Mismatch() bool {
	return c.Bound && (c.IPMismatch || c.UserAgentMismatch)
}

// CheckBinding compares both fields for exact equality. Sessions issued
// without a snapshot are unbound and always pass.
func CheckBinding(session models.Session, presented models.ClientInfo) BindingCheck {
	if !session.Bound() {
		return BindingCheck{}
	}
	stored := session.Binding()
	return BindingCheck{
		Bound:             true,
		IPMismatch:        stored.IP != presented.IP,
		UserAgentMismatch: stored.UserAgent != presented.UserAgent,
	}
}
