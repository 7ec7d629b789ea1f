package core

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// fakeAccountRepo is an in-memory AccountRepository for handler tests.
// Setting failFind makes every lookup fail, simulating a store outage.
type fakeAccountRepo struct {
	mu       sync.Mutex
	nextID   int64
	items    map[int64]AccountRecord
	failFind error
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{nextID: 1, items: map[int64]AccountRecord{}}
}

func (r *fakeAccountRepo) seed(username, passwordHash, email, role string) int64 {
	id, _ := r.Create(context.Background(), username, passwordHash, email, role)
	return id
}

func (r *fakeAccountRepo) FindByUsername(_ context.Context, username string) (*AccountRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFind != nil {
		return nil, r.failFind
	}
	for _, a := range r.items {
		if a.Username == username {
			out := a
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeAccountRepo) FindByID(_ context.Context, id int64) (*AccountRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failFind != nil {
		return nil, r.failFind
	}
	a, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := a
	return &out, nil
}

func (r *fakeAccountRepo) Create(_ context.Context, username, passwordHash, email, role string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.items[id] = AccountRecord{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	return id, nil
}

func (r *fakeAccountRepo) Update(_ context.Context, id int64, username, passwordHash, email, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return pgx.ErrNoRows
	}
	a.Username = username
	a.PasswordHash = passwordHash
	a.Email = email
	a.Role = role
	r.items[id] = a
	return nil
}

func (r *fakeAccountRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *fakeAccountRepo) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = map[int64]AccountRecord{}
	return nil
}

func (r *fakeAccountRepo) List(_ context.Context, page, perPage int) ([]AccountListItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []AccountListItem
	for id := int64(1); id < r.nextID; id++ {
		if a, ok := r.items[id]; ok {
			items = append(items, AccountListItem{ID: a.ID, Username: a.Username, Email: a.Email, Role: a.Role, CreatedAt: a.CreatedAt})
		}
	}
	total := len(items)
	lo := (page - 1) * perPage
	if lo > total {
		lo = total
	}
	hi := lo + perPage
	if hi > total {
		hi = total
	}
	return items[lo:hi], total, nil
}

func (r *fakeAccountRepo) HasAdmin(_ context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.items {
		if a.Role == RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAccountRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items), nil
}

// fakeStudentRepo is an in-memory StudentRepository for handler tests.
type fakeStudentRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]Student
}

func newFakeStudentRepo() *fakeStudentRepo {
	return &fakeStudentRepo{nextID: 1, items: map[int64]Student{}}
}

func (r *fakeStudentRepo) Get(_ context.Context, id int64) (*Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := s
	return &out, nil
}

func (r *fakeStudentRepo) List(_ context.Context, page, perPage int) ([]Student, int, error) {
	all, _ := r.ListAll(context.Background())
	total := len(all)
	lo := (page - 1) * perPage
	if lo > total {
		lo = total
	}
	hi := lo + perPage
	if hi > total {
		hi = total
	}
	return all[lo:hi], total, nil
}

func (r *fakeStudentRepo) ListAll(_ context.Context) ([]Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []Student
	for id := int64(1); id < r.nextID; id++ {
		if s, ok := r.items[id]; ok {
			items = append(items, s)
		}
	}
	return items, nil
}

func (r *fakeStudentRepo) Create(_ context.Context, s Student) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	s.ID = id
	r.items[id] = s
	return id, nil
}

func (r *fakeStudentRepo) Update(_ context.Context, s Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.items[s.ID] = s
	return nil
}

func (r *fakeStudentRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *fakeStudentRepo) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = map[int64]Student{}
	return nil
}

func (r *fakeStudentRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items), nil
}
