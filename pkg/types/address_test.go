package types

import "testing"

func TestAddressNormalizeAndString(t *testing.T) {
	addr := Address{Street: " 12 Elm St ", City: "Austin ", State: "tx", Zip: "78701"}
	if got := addr.String(); got != "12 Elm St, Austin, TX 78701" {
		t.Fatalf("unexpected address string %q", got)
	}
	if missing := addr.MissingParts(); len(missing) != 0 {
		t.Fatalf("expected complete address, missing %v", missing)
	}
}

func TestAddressMissingParts(t *testing.T) {
	missing := Address{Street: "12 Elm St", State: "  "}.MissingParts()
	want := []string{"city", "state", "zip"}
	if len(missing) != len(want) {
		t.Fatalf("expected %v, got %v", want, missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, missing)
		}
	}
}
