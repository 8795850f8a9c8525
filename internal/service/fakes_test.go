package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/expense-claim-service/internal/domain"
	"github.com/spec-kit/expense-claim-service/internal/events"
	"github.com/spec-kit/expense-claim-service/internal/repository"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	user.ID = "user-" + strconv.Itoa(r.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetByEmployeeID(_ context.Context, employeeID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.EmployeeID == employeeID {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && user.Status != *filter.Status {
			continue
		}
		if filter.Department != nil && user.Department != *filter.Department {
			continue
		}
		result = append(result, *user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeID < result[j].EmployeeID })
	return result, nil
}

func (r *fakeUserRepo) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *fakeUserRepo) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, user := range r.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

// HighestEmployeeID mirrors the SQL implementation: compare parsed numeric
// suffixes, with malformed suffixes sorting last.
func (r *fakeUserRepo) HighestEmployeeID(_ context.Context, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	highest := ""
	highestSuffix := -1
	for _, user := range r.users {
		if !strings.HasPrefix(user.EmployeeID, prefix) {
			continue
		}
		suffix, err := strconv.Atoi(strings.TrimPrefix(user.EmployeeID, prefix))
		if err != nil {
			if highest == "" {
				highest = user.EmployeeID
			}
			continue
		}
		if suffix > highestSuffix {
			highestSuffix = suffix
			highest = user.EmployeeID
		}
	}
	return highest, nil
}

type fakeClaimRepo struct {
	mu     sync.Mutex
	claims map[string]*domain.Claim
	seq    int64
}

func newFakeClaimRepo() *fakeClaimRepo {
	return &fakeClaimRepo{claims: map[string]*domain.Claim{}}
}

func (r *fakeClaimRepo) Create(_ context.Context, claim *domain.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	claim.CreatedAt = time.Now()
	claim.UpdatedAt = claim.CreatedAt
	clone := *claim
	r.claims[claim.ID] = &clone
	return nil
}

func (r *fakeClaimRepo) GetByID(_ context.Context, id string) (*domain.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	claim, ok := r.claims[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *claim
	return &clone, nil
}

func (r *fakeClaimRepo) UpdateFields(_ context.Context, claim *domain.Claim, expected []domain.ClaimStatus) error {
	return r.conditionalWrite(claim, expected)
}

func (r *fakeClaimRepo) UpdateStatusFrom(_ context.Context, claim *domain.Claim, expected []domain.ClaimStatus) error {
	return r.conditionalWrite(claim, expected)
}

func (r *fakeClaimRepo) conditionalWrite(claim *domain.Claim, expected []domain.ClaimStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.claims[claim.ID]
	if !ok || !statusIn(stored.Status, expected) {
		return pgx.ErrNoRows
	}
	claim.UpdatedAt = time.Now()
	clone := *claim
	r.claims[claim.ID] = &clone
	return nil
}

func (r *fakeClaimRepo) Delete(_ context.Context, id string, expected []domain.ClaimStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.claims[id]
	if !ok || !statusIn(stored.Status, expected) {
		return pgx.ErrNoRows
	}
	delete(r.claims, id)
	return nil
}

func (r *fakeClaimRepo) ListWithFilter(_ context.Context, filter repository.ClaimFilter) ([]domain.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Claim
	for _, claim := range r.claims {
		if filter.OwnerID != nil && claim.OwnerID != *filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !statusIn(claim.Status, filter.Statuses) {
			continue
		}
		if filter.Category != nil && claim.Category != *filter.Category {
			continue
		}
		result = append(result, *claim)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeClaimRepo) NextSequence(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *fakeClaimRepo) StatsByStatus(_ context.Context, since time.Time, ownerID *string) ([]repository.StatusStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg := map[domain.ClaimStatus]*repository.StatusStat{}
	for _, claim := range r.claims {
		if claim.CreatedAt.Before(since) {
			continue
		}
		if ownerID != nil && claim.OwnerID != *ownerID {
			continue
		}
		stat, ok := agg[claim.Status]
		if !ok {
			stat = &repository.StatusStat{Status: claim.Status}
			agg[claim.Status] = stat
		}
		stat.Count++
		stat.Total += claim.Amount
	}
	var result []repository.StatusStat
	for _, stat := range agg {
		result = append(result, *stat)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Status < result[j].Status })
	return result, nil
}

func (r *fakeClaimRepo) TopCategories(_ context.Context, since time.Time, limit int) ([]repository.CategoryStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg := map[string]*repository.CategoryStat{}
	for _, claim := range r.claims {
		if claim.CreatedAt.Before(since) {
			continue
		}
		stat, ok := agg[claim.Category]
		if !ok {
			stat = &repository.CategoryStat{Category: claim.Category}
			agg[claim.Category] = stat
		}
		stat.Count++
		stat.Total += claim.Amount
	}
	var result []repository.CategoryStat
	for _, stat := range agg {
		result = append(result, *stat)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Total > result[j].Total })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	fail    bool
}

func (r *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return pgx.ErrTxClosed
	}
	entry.ID = "audit-" + strconv.Itoa(len(r.entries)+1)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) all() []domain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AuditEntry{}, r.entries...)
}

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: map[string]string{}}
}

func (s *fakeTokenStore) Save(_ context.Context, token, userID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = userID
	return nil
}

func (s *fakeTokenStore) Lookup(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tokens[token]
	if !ok {
		return "", repository.ErrTokenNotFound
	}
	return userID, nil
}

func (s *fakeTokenStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) Close() {}

func (d *recordingDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event{}, d.events...)
}
