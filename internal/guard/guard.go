package guard

import (
	"github.com/EmaRG1/user-manager/internal/model"
	"github.com/EmaRG1/user-manager/internal/session"
)

type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectDashboard
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	}
	return "unknown"
}

// Requirement describes who may pass. The zero value admits any
// authenticated user.
type Requirement struct {
	Roles     []model.Role
	AdminOnly bool
}

type Verifier interface {
	Verify(token string) bool
}

type Guard struct {
	verifier Verifier
}

func New(verifier Verifier) *Guard {
	return &Guard{verifier: verifier}
}

func (g *Guard) Check(state session.State, req Requirement) Decision {
	if !state.IsAuthenticated || state.Token == "" {
		return RedirectLogin
	}
	if !g.verifier.Verify(state.Token) {
		return RedirectLogin
	}
	if !req.allows(state.Role) {
		return RedirectDashboard
	}
	return Allow
}

func (r Requirement) allows(role model.Role) bool {
	if r.AdminOnly && role != model.RoleAdmin {
		return false
	}
	if len(r.Roles) == 0 {
		return true
	}
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}
