// Package authz resolves a caller's role set against a collection name to a
// capability set. It is a pure function of (roles, collection name): no
// database, no context, no side effects, matching the spec's description of
// the authorizer as "purely functional over (collection name, role set)".
package authz

import "strings"

// Capability is one bit of what a caller may do on a given collection.
type Capability uint8

// The five per-collection capabilities named in spec §4.1. The platform-wide
// administrator is a role (PlatformAdminRole), not a capability bit.
const (
	CapReader Capability = 1 << iota
	CapAllReader
	CapEditor
	CapAdmin
	CapRemover
)

// PlatformAdminRole is the single role that administers the platform as a
// whole (create/list/rebuild-grants any collection), independent of any one
// collection's per-collection roles.
const PlatformAdminRole = "A_FOLIVAFY_COLLECTION_EDITOR"

// IsPlatformAdmin reports whether roles contains the platform administrator
// role.
func IsPlatformAdmin(roles []string) bool {
	for _, r := range roles {
		if r == PlatformAdminRole {
			return true
		}
	}
	return false
}

// Has reports whether caps contains capability c.
func (caps Capability) Has(c Capability) bool {
	return caps&c != 0
}

// ForCollection resolves roles against collection, returning the set of
// capabilities the caller holds on it. <NAME> in the role grammar is the
// collection name uppercased, hyphens preserved — strings.ToUpper already
// leaves hyphens and digits untouched, so no further translation is needed.
func ForCollection(roles []string, collection string) Capability {
	prefix := "C_" + strings.ToUpper(collection) + "_"
	var caps Capability
	for _, r := range roles {
		if !strings.HasPrefix(r, prefix) {
			continue
		}
		switch strings.TrimPrefix(r, prefix) {
		case "READER":
			caps |= CapReader
		case "ALLREADER":
			caps |= CapAllReader
		case "EDITOR":
			caps |= CapEditor
		case "ADMIN":
			caps |= CapAdmin
		case "REMOVER":
			caps |= CapRemover
		}
	}
	return caps
}

// CanRead reports whether caps allows reading active documents in an
// unrestricted way (non-OAO reader/all-reader/admin, or any-OAO
// all-reader/admin). It does not evaluate OAO ownership — that is a
// per-document check the façade makes separately.
func CanRead(caps Capability) bool {
	return caps.Has(CapReader) || caps.Has(CapAllReader) || caps.Has(CapAdmin)
}

// CanReadAnyOwner reports whether caps bypasses OAO ownership restrictions
// entirely.
func CanReadAnyOwner(caps Capability) bool {
	return caps.Has(CapAllReader) || caps.Has(CapAdmin)
}

// CanEdit reports whether caps allows creating/replacing documents.
func CanEdit(caps Capability) bool {
	return caps.Has(CapEditor)
}

// CanPostLifecycleEvent reports whether caps allows posting delete/recover
// events (reader or all-reader, plus remover — spec §4.5).
func CanPostLifecycleEvent(caps Capability) bool {
	return (caps.Has(CapReader) || caps.Has(CapAllReader)) && caps.Has(CapRemover)
}

// CanRecoverStage2 reports whether caps allows recovering a stage-2
// document (admin only, spec §4.5).
func CanRecoverStage2(caps Capability) bool {
	return caps.Has(CapAdmin)
}

// CanPostApplicationEvent reports whether caps allows posting an
// application-defined event category: reader, all-reader or admin each
// suffice; editor alone is insufficient (spec §4.5).
func CanPostApplicationEvent(caps Capability) bool {
	return caps.Has(CapReader) || caps.Has(CapAllReader) || caps.Has(CapAdmin)
}
