// Package apierr enumerates the error kinds the document/collection engine
// surfaces to its callers, so the HTTP layer never hand-rolls a status code:
// it type-switches on Kind.
package apierr

import (
	"fmt"
	"net/http"
)

// Kind is one of the fixed error kinds the core can report.
type Kind int

// The error kinds named in the error handling design.
const (
	Unauthorized Kind = iota + 1
	NotFound
	DuplicateCollection
	DuplicateDocument
	AlreadyDeleted
	NotInDeletedStage
	Malformed
	Internal
)

// Error is a typed error carrying a Kind plus a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Unauthorizedf builds an Unauthorized error.
func Unauthorizedf(format string, args ...interface{}) *Error {
	return &Error{Kind: Unauthorized, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFound error.
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

// Malformedf builds a Malformed error.
func Malformedf(format string, args ...interface{}) *Error {
	return &Error{Kind: Malformed, Message: fmt.Sprintf(format, args...)}
}

// Internalf builds an Internal error.
func Internalf(format string, args ...interface{}) *Error {
	return &Error{Kind: Internal, Message: fmt.Sprintf(format, args...)}
}

// DuplicateCollectionErr reports a collection name that already exists.
func DuplicateCollectionErr() *Error {
	return &Error{Kind: DuplicateCollection, Message: "Duplicate collection name"}
}

// DuplicateDocumentErr reports a document id already present in some
// collection.
func DuplicateDocumentErr() *Error {
	return &Error{Kind: DuplicateDocument, Message: "Duplicate document"}
}

// AlreadyDeletedErr reports reposting a delete event on a document that is
// already in a deleted stage.
func AlreadyDeletedErr() *Error {
	return &Error{Kind: AlreadyDeleted, Message: "Document already deleted"}
}

// NotInDeletedStageErr reports a recover event posted against an active
// document.
func NotInDeletedStageErr() *Error {
	return &Error{Kind: NotInDeletedStage, Message: "Document is not in deleted stage"}
}

// As extracts *Error from err, if it is one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// HTTPStatus maps a Kind to the status code the HTTP boundary returns.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthorized:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case DuplicateCollection, DuplicateDocument, AlreadyDeleted, NotInDeletedStage:
		return http.StatusConflict
	case Malformed:
		return http.StatusBadRequest
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// JSONEnvelope reports whether the kind's body is the {"message":...}
// envelope (per DESIGN.md's resolution of the duplicate-collection response
// shape question) rather than a plain text body.
func (k Kind) JSONEnvelope() bool {
	switch k {
	case DuplicateCollection, DuplicateDocument, AlreadyDeleted, NotInDeletedStage, Malformed:
		return true
	default:
		return false
	}
}

