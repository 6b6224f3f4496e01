package access

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Screen is a navigable section of the ERP.
type Screen struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

const (
	ScreenDashboard      = "dashboard"
	ScreenMateriasPrimas = "materias_primas"
	ScreenProdutos       = "produtos"
	ScreenUsuarios       = "usuarios"
)

const (
	ActionView   = "view"
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
	ActionCreate = "create"
	ActionUpdate = "update"
)

// Screens in navigation order.
var Screens = []Screen{
	{ID: ScreenDashboard, Label: "Dashboard"},
	{ID: ScreenMateriasPrimas, Label: "Matérias-Primas"},
	{ID: ScreenProdutos, Label: "Produtos"},
	{ID: ScreenUsuarios, Label: "Usuários"},
}

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

var defaultPolicies = [][]string{
	{"user", ScreenDashboard, ActionView},
	{"user", ScreenMateriasPrimas, ActionView},
	{"user", ScreenProdutos, ActionView},
	{"user", ScreenMateriasPrimas, ActionRead},
	{"user", ScreenMateriasPrimas, ActionWrite},
	{"user", ScreenProdutos, ActionRead},
	{"user", ScreenProdutos, ActionWrite},

	{"admin", ScreenUsuarios, ActionView},
	{"admin", ScreenUsuarios, ActionRead},
	{"admin", ScreenUsuarios, ActionCreate},
	{"admin", ScreenUsuarios, ActionUpdate},
	{"admin", ScreenMateriasPrimas, ActionDelete},
	{"admin", ScreenProdutos, ActionDelete},
}

// Policy gates screens and actions per role. Admin inherits every user grant.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("parse access model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	if _, err := enforcer.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("load access policies: %w", err)
	}
	if _, err := enforcer.AddGroupingPolicy(string(RoleAdmin), string(RoleUser)); err != nil {
		return nil, fmt.Errorf("load role hierarchy: %w", err)
	}

	return &Policy{enforcer: enforcer}, nil
}

// MustNewPolicy panics if the embedded policy cannot be loaded.
func MustNewPolicy() *Policy {
	p, err := NewPolicy()
	if err != nil {
		panic(err)
	}
	return p
}

// Can reports whether role may perform action on resource. An absent or
// unknown role can do nothing, and enforcement errors deny.
func (p *Policy) Can(role Role, resource, action string) bool {
	if !role.Valid() {
		return false
	}
	ok, err := p.enforcer.Enforce(string(role), resource, action)
	return err == nil && ok
}

func (p *Policy) CanView(role Role, screen string) bool {
	return p.Can(role, screen, ActionView)
}

// VisibleScreens returns the navigation entries role may open.
func (p *Policy) VisibleScreens(role Role) []Screen {
	visible := make([]Screen, 0, len(Screens))
	for _, s := range Screens {
		if p.CanView(role, s.ID) {
			visible = append(visible, s)
		}
	}
	return visible
}
