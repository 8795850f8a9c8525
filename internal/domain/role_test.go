package domain

import "testing"

func TestNormalizeRoleFoldsLegacyNames(t *testing.T) {
	cases := map[string]Role{
		"admin":         RoleAdmin,
		"Administrator": RoleAdmin,
		"worker":        RoleWorker,
		"EMPLOYEE":      RoleWorker,
		"accountant":    RoleAccountant,
		"approver":      RoleAccountant,
		"Manager":       RoleAccountant,
	}
	for raw, want := range cases {
		got, ok := NormalizeRole(raw)
		if !ok || got != want {
			t.Errorf("NormalizeRole(%q) = %q, %v; want %q", raw, got, ok, want)
		}
	}
	if _, ok := NormalizeRole("superuser"); ok {
		t.Error("unknown role should not normalize")
	}
}

func TestRoleCapabilities(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleWorker, CapCreateClaim, true},
		{RoleWorker, CapApprove, false},
		{RoleWorker, CapPay, false},
		{RoleWorker, CapManageUsers, false},
		{RoleAccountant, CapCreateClaim, true},
		{RoleAccountant, CapRecommend, true},
		{RoleAccountant, CapApprove, true},
		{RoleAccountant, CapPay, true},
		{RoleAccountant, CapManageUsers, false},
		{RoleAdmin, CapApprove, true},
		{RoleAdmin, CapManageUsers, true},
	}
	for _, tc := range cases {
		if got := tc.role.Has(tc.cap); got != tc.want {
			t.Errorf("%s.Has(%s) = %v, want %v", tc.role, tc.cap, got, tc.want)
		}
	}
}

func TestIsAdmin(t *testing.T) {
	if !RoleAdmin.IsAdmin() {
		t.Error("admin should be admin")
	}
	if RoleAccountant.IsAdmin() || RoleWorker.IsAdmin() {
		t.Error("only admin carries admin rights")
	}
}

func TestValidClaimStatus(t *testing.T) {
	if status, ok := ValidClaimStatus(" Under_Review "); !ok || status != ClaimStatusUnderReview {
		t.Errorf("expected under_review, got %q (%v)", status, ok)
	}
	if _, ok := ValidClaimStatus("finished"); ok {
		t.Error("unknown status should not validate")
	}
}

func TestIsDecided(t *testing.T) {
	for _, status := range []ClaimStatus{ClaimStatusApproved, ClaimStatusRejected, ClaimStatusPaid} {
		if !status.IsDecided() {
			t.Errorf("%s should be decided", status)
		}
	}
	for _, status := range []ClaimStatus{ClaimStatusNew, ClaimStatusPending, ClaimStatusRecommendation} {
		if status.IsDecided() {
			t.Errorf("%s should not be decided", status)
		}
	}
}
