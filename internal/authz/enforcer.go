package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Objects guarded by role permissions.
const (
	ObjTicket = "ticket"
	ObjUser   = "user"
	ObjReport = "report"
	ObjSearch = "search"
)

// Actions on those objects.
const (
	ActCreate  = "create"
	ActRead    = "read"
	ActComment = "comment"
	ActManage  = "manage"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && (r.act == p.act || p.act == "*")
`

// rolePolicies lists what each role may do. super_admin owns every object;
// regular users only file and follow their own tickets.
var rolePolicies = [][]string{
	{"super_admin", ObjTicket, "*"},
	{"super_admin", ObjUser, "*"},
	{"super_admin", ObjReport, "*"},
	{"super_admin", ObjSearch, "*"},
	{"user", ObjTicket, ActCreate},
	{"user", ObjTicket, ActRead},
	{"user", ObjTicket, ActComment},
}

// Enforcer answers role permission questions for the access-control gate.
type Enforcer interface {
	Allowed(role, obj, act string) (bool, error)
}

type enforcer struct {
	e *casbin.Enforcer
}

func NewEnforcer() (Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	for _, p := range rolePolicies {
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("failed to add policy %v: %w", p, err)
		}
	}

	return &enforcer{e: e}, nil
}

func (e *enforcer) Allowed(role, obj, act string) (bool, error) {
	ok, err := e.e.Enforce(role, obj, act)
	if err != nil {
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return ok, nil
}
