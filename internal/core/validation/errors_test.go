package validation

import (
	"errors"
	"fmt"
	"testing"
)

var (
	errName  = errors.New("test: invalid name")
	errQuota = errors.New("test: invalid quota")
)

func TestFields_CollectsJoinedErrors(t *testing.T) {
	t.Parallel()

	err := errors.Join(
		New("name", errName, "Employee name is required."),
		fmt.Errorf("wrapped: %w", New("monthly_quota", errQuota, "Monthly quota must be at least 1.")),
	)

	fields := Fields(err)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %v", fields)
	}
	if fields["name"][0] != "Employee name is required." {
		t.Fatalf("unexpected name message %v", fields["name"])
	}
	if fields["monthly_quota"][0] != "Monthly quota must be at least 1." {
		t.Fatalf("unexpected quota message %v", fields["monthly_quota"])
	}

	if !errors.Is(err, errName) || !errors.Is(err, errQuota) {
		t.Fatal("expected sentinels to be reachable through errors.Is")
	}
	if !IsValidation(err) {
		t.Fatal("expected IsValidation to be true")
	}
}

func TestFields_NoFieldErrors(t *testing.T) {
	t.Parallel()

	if Fields(errors.New("boom")) != nil {
		t.Fatal("expected nil map for plain errors")
	}
	if IsValidation(errors.New("boom")) {
		t.Fatal("expected IsValidation to be false")
	}
}
