// Package events owns the fixed event category numbers and the two-stage
// deletion state machine that categories 2 and 3 drive. It is deliberately
// independent of the store: Transition is a pure function over (stage,
// category), so the rules in spec §4.5 can be tested without a database.
package events

import "github.com/foliva/folivafy/internal/apierr"

// Stage is a document's position in the deletion lifecycle.
type Stage string

// The three stages a document can be in.
const (
	StageActive        Stage = "active"
	StageDeletedStage1 Stage = "deleted_stage1"
	StageDeletedStage2 Stage = "deleted_stage2"
)

// Fixed category numbers, part of the wire contract (spec §3, §6).
const (
	CategoryOwnership      = 1
	CategoryDeleteRequest  = 2
	CategoryRecoverRequest = 3
	// CategorySystemPromote is posted by the periodic purge sweep, not by a
	// caller, when it advances a document from deleted_stage1 to
	// deleted_stage2 after its first-stage window elapses (spec §4.5). It is
	// recorded in the event trail like any other transition so the audit
	// history stays complete even for sweep-driven changes.
	CategorySystemPromote   = 4
	CategoryLifecycleMarker = 102
)

// Transition computes the document stage after applying category against
// current, or returns a typed apierr if the transition is illegal.
// Categories other than 2, 3 and 4 never change stage.
func Transition(current Stage, category int) (Stage, error) {
	switch category {
	case CategoryDeleteRequest:
		if current != StageActive {
			return current, apierr.AlreadyDeletedErr()
		}
		return StageDeletedStage1, nil
	case CategoryRecoverRequest:
		switch current {
		case StageDeletedStage1, StageDeletedStage2:
			return StageActive, nil
		default:
			return current, apierr.NotInDeletedStageErr()
		}
	case CategorySystemPromote:
		if current != StageDeletedStage1 {
			return current, apierr.NotInDeletedStageErr()
		}
		return StageDeletedStage2, nil
	default:
		return current, nil
	}
}

// RecoverRequiresAdmin reports whether recovering from stage requires the
// admin role rather than reader+remover (spec §4.5: stage2 recovery is
// admin-only).
func RecoverRequiresAdmin(stage Stage) bool {
	return stage == StageDeletedStage2
}

// Visible reports whether a document in stage belongs in the ordinary
// (non-recoverables) view.
func Visible(stage Stage) bool {
	return stage == StageActive
}
