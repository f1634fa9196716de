package authz

import "testing"

func TestIsPlatformAdmin(t *testing.T) {
	if !IsPlatformAdmin([]string{"C_ORDERS_READER", PlatformAdminRole}) {
		t.Fatal("expected platform admin role to be recognized")
	}
	if IsPlatformAdmin([]string{"C_ORDERS_READER"}) {
		t.Fatal("non-admin roles should not be recognized as platform admin")
	}
}

func TestForCollection(t *testing.T) {
	roles := []string{
		"C_ORDERS_READER",
		"C_ORDERS_EDITOR",
		"C_INVOICES_ADMIN",
		"unrelated-role",
	}
	caps := ForCollection(roles, "orders")
	if !caps.Has(CapReader) {
		t.Fatal("expected CapReader from C_ORDERS_READER")
	}
	if !caps.Has(CapEditor) {
		t.Fatal("expected CapEditor from C_ORDERS_EDITOR")
	}
	if caps.Has(CapAdmin) {
		t.Fatal("did not expect CapAdmin, role belongs to a different collection")
	}

	invoiceCaps := ForCollection(roles, "invoices")
	if !invoiceCaps.Has(CapAdmin) {
		t.Fatal("expected CapAdmin from C_INVOICES_ADMIN")
	}
	if invoiceCaps.Has(CapReader) {
		t.Fatal("invoices caller should not have reader from a different collection's role")
	}
}

func TestForCollection_NameWithHyphen(t *testing.T) {
	caps := ForCollection([]string{"C_FOLIVAFY-MAIL_ADMIN"}, "folivafy-mail")
	if !caps.Has(CapAdmin) {
		t.Fatal("expected CapAdmin for a hyphenated collection name")
	}
}

func TestCanRead(t *testing.T) {
	if CanRead(0) {
		t.Fatal("no capability should not grant read")
	}
	if !CanRead(CapReader) {
		t.Fatal("CapReader should grant read")
	}
	if !CanRead(CapAllReader) {
		t.Fatal("CapAllReader should grant read")
	}
	if !CanRead(CapAdmin) {
		t.Fatal("CapAdmin should grant read")
	}
	if CanRead(CapEditor) {
		t.Fatal("CapEditor alone should not grant read")
	}
}

func TestCanReadAnyOwner(t *testing.T) {
	if CanReadAnyOwner(CapReader) {
		t.Fatal("a plain reader should not bypass OAO ownership")
	}
	if !CanReadAnyOwner(CapAllReader) {
		t.Fatal("an all-reader should bypass OAO ownership")
	}
	if !CanReadAnyOwner(CapAdmin) {
		t.Fatal("an admin should bypass OAO ownership")
	}
}

func TestCanEdit(t *testing.T) {
	if CanEdit(CapReader | CapAdmin) {
		t.Fatal("reader/admin without editor should not be able to edit")
	}
	if !CanEdit(CapEditor) {
		t.Fatal("editor should be able to edit")
	}
}

func TestCanPostLifecycleEvent(t *testing.T) {
	if CanPostLifecycleEvent(CapReader) {
		t.Fatal("reader alone should not post lifecycle events")
	}
	if CanPostLifecycleEvent(CapRemover) {
		t.Fatal("remover alone should not post lifecycle events")
	}
	if !CanPostLifecycleEvent(CapReader | CapRemover) {
		t.Fatal("reader+remover should post lifecycle events")
	}
	if !CanPostLifecycleEvent(CapAllReader | CapRemover) {
		t.Fatal("all-reader+remover should post lifecycle events")
	}
}

func TestCanRecoverStage2(t *testing.T) {
	if CanRecoverStage2(CapReader | CapRemover) {
		t.Fatal("reader+remover should not recover a stage-2 document")
	}
	if !CanRecoverStage2(CapAdmin) {
		t.Fatal("admin should recover a stage-2 document")
	}
}

func TestCanPostApplicationEvent(t *testing.T) {
	if CanPostApplicationEvent(CapEditor) {
		t.Fatal("editor alone should not post an application event")
	}
	if !CanPostApplicationEvent(CapReader) {
		t.Fatal("reader should post an application event")
	}
	if !CanPostApplicationEvent(CapAdmin) {
		t.Fatal("admin should post an application event")
	}
}
