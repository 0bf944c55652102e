// Package authz decides which roles may perform which actions on which API resources, using casbin.
package authz

import (
	"io/fs"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/assets"
)

type Mode string

const (
	ModeEnforce  Mode = "enforce"
	ModeShadow   Mode = "shadow"
	ModeDisabled Mode = "disabled"
)

// Actions checked against the policy.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	// ActionReview covers verifying stock-ins and approving or rejecting requests.
	ActionReview = "review"
)

var errUnknownMode = errors.New("authz: invalid mode (expected enforce|shadow|disabled)")

func ParseMode(raw string) (Mode, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ModeEnforce, nil
	}
	switch Mode(raw) {
	case ModeEnforce, ModeShadow, ModeDisabled:
		return Mode(raw), nil
	}
	return "", errUnknownMode
}

type Authorizer struct {
	enforcer *casbin.Enforcer
	mode     Mode
}

// NewAuthorizer loads the embedded model and policy.
func NewAuthorizer(mode Mode) (*Authorizer, error) {
	return NewAuthorizerFS(assets.FS, assets.AuthzModelPath, assets.AuthzPolicyPath, mode)
}

func NewAuthorizerFS(fsys fs.FS, modelPath, policyPath string, mode Mode) (*Authorizer, error) {
	modelText, err := fs.ReadFile(fsys, modelPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading authz model")
	}
	policy, err := fs.ReadFile(fsys, policyPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading authz policy")
	}

	m, err := model.NewModelFromString(string(modelText))
	if err != nil {
		return nil, errors.Wrap(err, "parsing authz model")
	}
	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(string(policy)))
	if err != nil {
		return nil, errors.Wrap(err, "loading authz policy")
	}
	return &Authorizer{enforcer: enforcer, mode: mode}, nil
}

func (a *Authorizer) Mode() Mode { return a.mode }

// SubjectFromRole maps a user role to its policy subject, e.g. "admin:owner" to "role:admin:owner".
func SubjectFromRole(role string) string {
	role = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(role)), ":")
	if role == "" {
		role = "anonymous"
	}
	return "role:" + role
}

// Authorize reports whether any of roles may perform action on object.
// enforced is false when the decision must not block the request (shadow and disabled modes).
func (a *Authorizer) Authorize(roles []string, object, action string) (allowed bool, enforced bool, err error) {
	if a.mode == ModeDisabled {
		return true, false, nil
	}
	enforced = a.mode == ModeEnforce
	if a.mode != ModeEnforce && a.mode != ModeShadow {
		return false, false, errUnknownMode
	}

	for _, role := range roles {
		ok, err := a.enforcer.Enforce(SubjectFromRole(role), object, action)
		if err != nil {
			return false, enforced, errors.Wrap(err, "enforcing policy")
		}
		if ok {
			return true, enforced, nil
		}
	}
	return false, enforced, nil
}
