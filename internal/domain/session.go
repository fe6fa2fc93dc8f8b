package domain

// UserPlan enumerates billing plans.
type UserPlan string

const (
	UserPlanFree    UserPlan = "free"
	UserPlanPremium UserPlan = "premium"
)

// Session is the identity switch controlling store selection and
// entitlement. An empty UserID means the caller is anonymous; DeviceID then
// scopes the device-local library ("browser profile" in the original client).
type Session struct {
	UserID   string
	DeviceID string
	Plan     UserPlan
}

// Authenticated reports whether a signed-in user backs this session.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Entitled reports whether the session may submit video-generation jobs.
func (s Session) Entitled() bool {
	return s.Authenticated() && s.Plan == UserPlanPremium
}

// Key returns the identifier sessions are registered under: the user ID when
// authenticated, otherwise the device ID.
func (s Session) Key() string {
	if s.Authenticated() {
		return s.UserID
	}
	return s.DeviceID
}
