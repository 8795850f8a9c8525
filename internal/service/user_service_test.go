package service

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/expense-claim-service/internal/config"
	"github.com/spec-kit/expense-claim-service/internal/domain"
)

func testEmployeesConfig() config.EmployeesConfig {
	return config.EmployeesConfig{IDPrefix: "HFA-W-", IDOffset: 1000}
}

func newTestUserService() (*UserService, *fakeUserRepo, *recordingDispatcher) {
	userRepo := newFakeUserRepo()
	dispatcher := &recordingDispatcher{}
	svc := NewUserService(config.AuthConfig{BcryptCost: 4}, testEmployeesConfig(), UserDependencies{
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
	return svc, userRepo, dispatcher
}

func seedUser(t *testing.T, repo *fakeUserRepo, employeeID, email string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{
		EmployeeID:   employeeID,
		Email:        email,
		Name:         "Seeded",
		PasswordHash: "x",
		Role:         role,
		Status:       domain.UserStatusActive,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return user
}

func validCreateInput(email string) UserCreateInput {
	return UserCreateInput{
		Email:    email,
		Name:     "New Hire",
		Password: "correct-horse",
		Role:     "worker",
	}
}

func TestCreateUserAllocatesNextEmployeeID(t *testing.T) {
	svc, repo, _ := newTestUserService()
	admin := seedUser(t, repo, "HFA-W-1001", "admin@example.com", domain.RoleAdmin)
	for i := 2; i <= 5; i++ {
		seedUser(t, repo, "HFA-W-100"+strconv.Itoa(i), "u"+strconv.Itoa(i)+"@example.com", domain.RoleWorker)
	}

	user, err := svc.CreateUser(context.Background(), admin, validCreateInput("new@example.com"), domain.RequestOrigin{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.EmployeeID != "HFA-W-1006" {
		t.Fatalf("expected HFA-W-1006, got %s", user.EmployeeID)
	}
}

func TestCreateUserEmptyDirectoryUsesOffset(t *testing.T) {
	svc, repo, _ := newTestUserService()
	// admin from another prefix era so the allocator finds no HFA-W ids
	admin := seedUser(t, repo, "LEGACY-1", "admin@example.com", domain.RoleAdmin)

	user, err := svc.CreateUser(context.Background(), admin, validCreateInput("first@example.com"), domain.RequestOrigin{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.EmployeeID != "HFA-W-1002" {
		t.Fatalf("expected count+offset+1 id HFA-W-1002, got %s", user.EmployeeID)
	}
}

func TestAllocateEmployeeIDSurvivesDigitRollover(t *testing.T) {
	svc, repo, _ := newTestUserService()
	admin := seedUser(t, repo, "HFA-W-9999", "admin@example.com", domain.RoleAdmin)
	seedUser(t, repo, "HFA-W-10000", "w@example.com", domain.RoleWorker)

	user, err := svc.CreateUser(context.Background(), admin, validCreateInput("new@example.com"), domain.RequestOrigin{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// lexicographic ordering would pick 9999 here and collide on 10000
	if user.EmployeeID != "HFA-W-10001" {
		t.Fatalf("expected HFA-W-10001, got %s", user.EmployeeID)
	}
}

func TestAllocateEmployeeIDNoUsersStartsAtOffset(t *testing.T) {
	svc, _, _ := newTestUserService()

	id, err := svc.allocateEmployeeID(context.Background())
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if id != "HFA-W-1001" {
		t.Fatalf("expected HFA-W-1001 for empty directory, got %s", id)
	}
}

func TestCreateUserDuplicateEmailConflicts(t *testing.T) {
	svc, repo, _ := newTestUserService()
	admin := seedUser(t, repo, "HFA-W-1001", "admin@example.com", domain.RoleAdmin)

	_, err := svc.CreateUser(context.Background(), admin, validCreateInput("Admin@Example.com"), domain.RequestOrigin{})
	if err == nil {
		t.Fatal("expected conflict for duplicate email")
	}
	if status := httpStatus(t, err); status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc, repo, _ := newTestUserService()
	admin := seedUser(t, repo, "HFA-W-1001", "admin@example.com", domain.RoleAdmin)

	input := validCreateInput("new@example.com")
	input.Role = "superuser"
	_, err := svc.CreateUser(context.Background(), admin, input, domain.RequestOrigin{})
	if err == nil {
		t.Fatal("expected validation error for unknown role")
	}
	if status := httpStatus(t, err); status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestCreateUserNormalizesLegacyRole(t *testing.T) {
	svc, repo, _ := newTestUserService()
	admin := seedUser(t, repo, "HFA-W-1001", "admin@example.com", domain.RoleAdmin)

	input := validCreateInput("new@example.com")
	input.Role = "Approver"
	user, err := svc.CreateUser(context.Background(), admin, input, domain.RequestOrigin{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Role != domain.RoleAccountant {
		t.Fatalf("expected approver to fold into accountant, got %s", user.Role)
	}
}

func TestWorkerCannotCreateUsers(t *testing.T) {
	svc, repo, _ := newTestUserService()
	worker := seedUser(t, repo, "HFA-W-1001", "worker@example.com", domain.RoleWorker)

	_, err := svc.CreateUser(context.Background(), worker, validCreateInput("new@example.com"), domain.RequestOrigin{})
	if err == nil {
		t.Fatal("expected forbidden")
	}
	if status := httpStatus(t, err); status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}

func TestAdminCannotDeactivateSelf(t *testing.T) {
	svc, repo, _ := newTestUserService()
	admin := seedUser(t, repo, "HFA-W-1001", "admin@example.com", domain.RoleAdmin)

	_, err := svc.UpdateStatus(context.Background(), admin, admin.ID, "inactive", domain.RequestOrigin{})
	if err == nil {
		t.Fatal("expected validation error changing own status")
	}
	if status := httpStatus(t, err); status != http.StatusBadRequest {
		t.Fatalf("self-protection should be 400, got %d", status)
	}
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	svc, repo, _ := newTestUserService()
	admin := seedUser(t, repo, "HFA-W-1001", "admin@example.com", domain.RoleAdmin)

	err := svc.DeleteUser(context.Background(), admin, admin.ID, domain.RequestOrigin{})
	if err == nil {
		t.Fatal("expected validation error deleting own account")
	}
	if status := httpStatus(t, err); status != http.StatusBadRequest {
		t.Fatalf("self-protection should be 400, got %d", status)
	}
}

func TestAdminCanDeleteOtherAccount(t *testing.T) {
	svc, repo, _ := newTestUserService()
	admin := seedUser(t, repo, "HFA-W-1001", "admin@example.com", domain.RoleAdmin)
	victim := seedUser(t, repo, "HFA-W-1002", "worker@example.com", domain.RoleWorker)

	if err := svc.DeleteUser(context.Background(), admin, victim.ID, domain.RequestOrigin{}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), victim.ID); err == nil {
		t.Fatal("account should be gone")
	}
}

func TestSelfUpdateCannotEscalateRole(t *testing.T) {
	svc, repo, _ := newTestUserService()
	worker := seedUser(t, repo, "HFA-W-1001", "worker@example.com", domain.RoleWorker)

	role := "admin"
	_, err := svc.UpdateUser(context.Background(), worker, worker.ID, UserUpdateInput{Role: &role}, domain.RequestOrigin{})
	if err == nil {
		t.Fatal("expected forbidden changing own role")
	}
	if status := httpStatus(t, err); status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}

func TestSelfUpdateProfileFields(t *testing.T) {
	svc, repo, _ := newTestUserService()
	worker := seedUser(t, repo, "HFA-W-1001", "worker@example.com", domain.RoleWorker)

	phone := "555-0101"
	updated, err := svc.UpdateUser(context.Background(), worker, worker.ID, UserUpdateInput{Phone: &phone}, domain.RequestOrigin{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phone != phone {
		t.Fatalf("phone not updated: %s", updated.Phone)
	}
}

func TestUpdateStatusRecordsEvent(t *testing.T) {
	svc, repo, dispatcher := newTestUserService()
	admin := seedUser(t, repo, "HFA-W-1001", "admin@example.com", domain.RoleAdmin)
	worker := seedUser(t, repo, "HFA-W-1002", "worker@example.com", domain.RoleWorker)

	updated, err := svc.UpdateStatus(context.Background(), admin, worker.ID, "suspended", domain.RequestOrigin{})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.UserStatusSuspended {
		t.Fatalf("expected suspended, got %s", updated.Status)
	}
	published := dispatcher.published()
	if len(published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(published))
	}
}
