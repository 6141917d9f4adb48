package auth

import (
	"errors"

	"github.com/manash/splendid/pkg/models"
)

const PricingPath = "/pricing"

var ErrPremiumRequired = errors.New("premium plan required")

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNotPremium      Reason = "not_premium"
)

// Decision is the outcome of gating a protected view. Reason only changes
// the wording shown to the user; every denial redirects to the same place.
type Decision struct {
	Allowed  bool
	Redirect string
	Reason   Reason
}

func Gate(user *models.AuthUser) Decision {
	if user.IsPremium() {
		return Decision{Allowed: true}
	}
	reason := ReasonNotPremium
	if user == nil {
		reason = ReasonUnauthenticated
	}
	return Decision{Redirect: PricingPath, Reason: reason}
}

func (d Decision) Message() string {
	switch d.Reason {
	case ReasonUnauthenticated:
		return "Log in with a premium plan to open the studio."
	case ReasonNotPremium:
		return "The studio is available on the premium plan."
	default:
		return ""
	}
}
