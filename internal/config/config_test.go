package config

import "testing"

func TestParseDeletionPolicies_Empty(t *testing.T) {
	policies, err := ParseDeletionPolicies("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 0 {
		t.Fatalf("got %v, want empty", policies)
	}
}

func TestParseDeletionPolicies_SingleTriple(t *testing.T) {
	policies, err := ParseDeletionPolicies("orders:7:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	policy, ok := policies["orders"]
	if !ok {
		t.Fatalf("expected a policy for orders, got %v", policies)
	}
	if policy.Stage1Days != 7 || policy.Stage2Days != 30 {
		t.Fatalf("got %+v", policy)
	}
}

func TestParseDeletionPolicies_MultipleTriples(t *testing.T) {
	policies, err := ParseDeletionPolicies("orders:7:30,invoices:1:5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("got %v", policies)
	}
	if policies["invoices"].Stage1Days != 1 || policies["invoices"].Stage2Days != 5 {
		t.Fatalf("got %+v", policies["invoices"])
	}
}

func TestParseDeletionPolicies_Malformed(t *testing.T) {
	cases := []string{
		"orders:7",
		"orders:seven:30",
		"orders:7:thirty",
		"orders:7:30:extra",
	}
	for _, c := range cases {
		if _, err := ParseDeletionPolicies(c); err == nil {
			t.Errorf("%q: expected an error", c)
		}
	}
}

func TestParseDeletionPolicies_IgnoresSurroundingWhitespaceAndEmptyEntries(t *testing.T) {
	policies, err := ParseDeletionPolicies(" orders:7:30 , ,invoices:1:5 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("got %v", policies)
	}
}
