package models

const (
	PlanPremium   = "premium"
	PlanFreeTrial = "free_trial"
)

type AuthUser struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name,omitempty"`
	Plan        string  `json:"plan,omitempty"`
	Premium     bool    `json:"premium,omitempty"`
	Credits     float64 `json:"credits"`
	CreditsUsed float64 `json:"creditsUsed"`
}

func (u *AuthUser) IsPremium() bool {
	if u == nil {
		return false
	}
	return u.Premium || u.Plan == PlanPremium
}

func (u *AuthUser) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
