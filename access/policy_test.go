package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowUnknownSubject(t *testing.T) {
	p := NewPolicy()
	err := p.Allow("ghost", "entry.create")
	assert.Error(t, err)
}

func TestAllowDefaultTrueGrantsUnlistedActions(t *testing.T) {
	p := NewPolicy().AddRole("admin", true)
	assert.NoError(t, p.Allow("admin", "entry.create"))
	assert.NoError(t, p.Allow("admin", "widget.exec"))
}

func TestAllowDefaultFalseRequiresExplicitGrant(t *testing.T) {
	p := NewPolicy().AddRole("viewer", false).Grant("viewer", "widget.exec")
	assert.NoError(t, p.Allow("viewer", "widget.exec"))
	assert.Error(t, p.Allow("viewer", "entry.create"))
}

func TestDenyOverridesDefaultTrue(t *testing.T) {
	p := NewPolicy().AddRole("admin", true).Deny("admin", "entry.create")
	assert.Error(t, p.Allow("admin", "entry.create"))
	assert.NoError(t, p.Allow("admin", "widget.exec"))
}

func TestDenyOverridesInheritedGrant(t *testing.T) {
	p := NewPolicy().
		AddRole("base", false).Grant("base", "entry.create").
		AddRole("restricted", false).AddMember("restricted", "base").
		Deny("restricted", "entry.create")

	assert.NoError(t, p.Allow("base", "entry.create"))
	assert.Error(t, p.Allow("restricted", "entry.create"))
}

func TestAllowedInheritsThroughMembership(t *testing.T) {
	p := NewPolicy().
		AddRole("base", false).Grant("base", "entry.create").
		AddRole("derived", false).AddMember("derived", "base")

	assert.NoError(t, p.Allow("derived", "entry.create"))
	assert.Error(t, p.Allow("derived", "widget.exec"))
}
