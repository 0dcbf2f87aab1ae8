// Package access provides a flat, role-based gate in front of pipeline
// runs: one action name per operation ("entry.create", "widget.exec", ...),
// with no row-level or multi-tenant scoping.
package access

import "github.com/mb0/xelf/cor"

// Policy allows a user to perform an action or returns an error.
type Policy interface {
	Allow(user, action string) error
}

// Rules implements a role-based Policy: each role may inherit other roles,
// and carries its own allow/deny lists, deny always winning over allow.
type Rules struct{ roles map[string]*role }

// NewPolicy returns an empty rule set.
func NewPolicy() *Rules { return &Rules{roles: make(map[string]*role)} }

// AddRole registers role, with def controlling whether it is allowed any
// action not explicitly listed.
func (p *Rules) AddRole(name string, def bool) *Rules {
	p.role(name).def = def
	return p
}

// AddMember makes role inherit group's allow/deny lists.
func (p *Rules) AddMember(role, group string) *Rules {
	s := p.role(role)
	s.roles = append(s.roles, p.role(group))
	return p
}

// Grant gives role permission to perform action.
func (p *Rules) Grant(role, action string) *Rules {
	s := p.role(role)
	s.allow = append(s.allow, action)
	return p
}

// Deny revokes role's permission to perform action, even if otherwise
// granted by default or inheritance.
func (p *Rules) Deny(role, action string) *Rules {
	s := p.role(role)
	s.deny = append(s.deny, action)
	return p
}

// Allow implements Policy: user is treated as a role name directly, with no
// separate user-to-role mapping layer.
func (p *Rules) Allow(user, action string) error {
	s := p.roles[user]
	if s == nil {
		return cor.Errorf("subject %q is unknown", user)
	}
	if s.denied(action) {
		return cor.Errorf("subject %q is denied to %q", user, action)
	}
	if !s.def && !s.allowed(action) {
		return cor.Errorf("subject %q is not allowed to %q", user, action)
	}
	return nil
}

func (p *Rules) role(name string) (s *role) {
	if s = p.roles[name]; s == nil {
		s = &role{name: name}
		p.roles[name] = s
	}
	return s
}

type role struct {
	name  string
	def   bool
	allow []string
	deny  []string
	roles []*role
}

func (s *role) allowed(act string) bool {
	for _, a := range s.allow {
		if act == a {
			return true
		}
	}
	for _, r := range s.roles {
		if r.allowed(act) {
			return true
		}
	}
	return false
}

func (s *role) denied(act string) bool {
	for _, a := range s.deny {
		if act == a {
			return true
		}
	}
	for _, r := range s.roles {
		if r.denied(act) {
			return true
		}
	}
	return false
}
