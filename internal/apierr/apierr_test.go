package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Unauthorized, http.StatusUnauthorized},
		{NotFound, http.StatusNotFound},
		{DuplicateCollection, http.StatusConflict},
		{DuplicateDocument, http.StatusConflict},
		{AlreadyDeleted, http.StatusConflict},
		{NotInDeletedStage, http.StatusConflict},
		{Malformed, http.StatusBadRequest},
		{Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := c.kind.HTTPStatus(); got != c.want {
			t.Errorf("Kind(%d).HTTPStatus() = %d, want %d", c.kind, got, c.want)
		}
	}
}

func TestJSONEnvelope(t *testing.T) {
	for _, kind := range []Kind{DuplicateCollection, DuplicateDocument, AlreadyDeleted, NotInDeletedStage, Malformed} {
		if !kind.JSONEnvelope() {
			t.Errorf("Kind(%d).JSONEnvelope() = false, want true", kind)
		}
	}
	for _, kind := range []Kind{Unauthorized, NotFound, Internal} {
		if kind.JSONEnvelope() {
			t.Errorf("Kind(%d).JSONEnvelope() = true, want false", kind)
		}
	}
}

func TestAs(t *testing.T) {
	err := NotFoundf("document %s not found", "abc")
	apiErr, ok := As(err)
	if !ok {
		t.Fatal("As() failed to extract *Error")
	}
	if apiErr.Kind != NotFound {
		t.Errorf("got kind %d, want NotFound", apiErr.Kind)
	}
	if apiErr.Message != "document abc not found" {
		t.Errorf("got message %q", apiErr.Message)
	}

	if _, ok := As(errors.New("plain error")); ok {
		t.Fatal("As() should not extract a plain error")
	}
}

func TestConstructors(t *testing.T) {
	if got := DuplicateCollectionErr().Kind; got != DuplicateCollection {
		t.Errorf("DuplicateCollectionErr: got kind %d", got)
	}
	if got := DuplicateDocumentErr().Kind; got != DuplicateDocument {
		t.Errorf("DuplicateDocumentErr: got kind %d", got)
	}
	if got := AlreadyDeletedErr().Kind; got != AlreadyDeleted {
		t.Errorf("AlreadyDeletedErr: got kind %d", got)
	}
	if got := NotInDeletedStageErr().Kind; got != NotInDeletedStage {
		t.Errorf("NotInDeletedStageErr: got kind %d", got)
	}
}
