package query

import "testing"

func TestProject_AlwaysIncludesTitle(t *testing.T) {
	f := Project([]byte(`{}`), "owner-1", "Weekly Report", nil)
	if f["title"] != "Weekly Report" {
		t.Fatalf("got %v", f)
	}
}

func TestProject_UnknownPathIsOmittedNotNull(t *testing.T) {
	f := Project([]byte(`{}`), "owner-1", "t", []string{"missing"})
	if _, ok := f["missing"]; ok {
		t.Fatalf("an unresolved path should be absent from the projection, got %v", f)
	}
}

func TestProject_AuthorFieldResolvesToOwnerID(t *testing.T) {
	f := Project([]byte(`{}`), "owner-1", "t", []string{AuthorField})
	if f[AuthorField] != "owner-1" {
		t.Fatalf("got %v", f)
	}
}

func TestProject_ExtraFieldFromPayload(t *testing.T) {
	f := Project([]byte(`{"priority":2}`), "owner-1", "t", []string{"priority"})
	if f["priority"] != 2.0 {
		t.Fatalf("got %v", f["priority"])
	}
}

func TestProject_TitleInExtraFieldsIsNotDuplicated(t *testing.T) {
	f := Project([]byte(`{}`), "owner-1", "t", []string{"title"})
	if len(f) != 1 {
		t.Fatalf("expected only the single title key, got %v", f)
	}
}
