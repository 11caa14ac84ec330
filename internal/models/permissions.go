package models

import (
	"encoding/json"
)

// Permissions is a token's capability document. It has two zones: a global
// admin flag and a per-resource map. Each resource value is one of three
// shapes on the wire — a bool (grant or deny everything on the resource),
// a single action name, or a list of action names. The shapes are decoded
// into ResourcePermission once, at the storage boundary, so evaluation
// never inspects raw JSON.
type Permissions struct {
	Admin     bool                          `json:"admin"`
	Resources map[string]ResourcePermission `json:"resources,omitempty"`
}

// Allows reports whether the document grants the given action on the given
// resource. Unknown resources and malformed values deny.
func (p Permissions) Allows(resource, action string) bool {
	if p.Admin {
		return true
	}
	perm, ok := p.Resources[resource]
	if !ok {
		return false
	}
	return perm.allows(action)
}

type permissionKind int

const (
	permissionDenyAll permissionKind = iota
	permissionAllowAll
	permissionAction
	permissionActionList
)

// ResourcePermission is the decoded form of one resource's permission
// value. The zero value denies every action.
type ResourcePermission struct {
	kind    permissionKind
	action  string
	actions []string
}

func AllowAll() ResourcePermission {
	return ResourcePermission{kind: permissionAllowAll}
}

func DenyAll() ResourcePermission {
	return ResourcePermission{kind: permissionDenyAll}
}

func AllowAction(action string) ResourcePermission {
	return ResourcePermission{kind: permissionAction, action: action}
}

func AllowActions(actions ...string) ResourcePermission {
	return ResourcePermission{kind: permissionActionList, actions: actions}
}

func (r ResourcePermission) allows(action string) bool {
	switch r.kind {
	case permissionAllowAll:
		return true
	case permissionAction:
		return r.action == action
	case permissionActionList:
		for _, a := range r.actions {
			if a == action {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (r ResourcePermission) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case permissionAllowAll:
		return json.Marshal(true)
	case permissionAction:
		return json.Marshal(r.action)
	case permissionActionList:
		if r.actions == nil {
			return json.Marshal([]string{})
		}
		return json.Marshal(r.actions)
	default:
		return json.Marshal(false)
	}
}

// UnmarshalJSON accepts the three documented shapes. Anything else decodes
// to deny-all rather than erroring, so a malformed stored document can
// never widen access.
func (r *ResourcePermission) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*r = AllowAll()
		} else {
			*r = DenyAll()
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = AllowAction(s)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*r = AllowActions(list...)
		return nil
	}

	*r = DenyAll()
	return nil
}
