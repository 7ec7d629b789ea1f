package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRecord represents the persisted projection of an account.
type AccountRecord struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	Role         string
	CreatedAt    time.Time
}

// AccountListItem is a projection for account listing (no password hash).
type AccountListItem struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	FindByUsername(ctx context.Context, username string) (*AccountRecord, error)
	FindByID(ctx context.Context, id int64) (*AccountRecord, error)
	Create(ctx context.Context, username, passwordHash, email, role string) (int64, error)
	Update(ctx context.Context, id int64, username, passwordHash, email, role string) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	List(ctx context.Context, page, perPage int) ([]AccountListItem, int, error)
	HasAdmin(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int, error)
}

// PgAccountRepository implements AccountRepository using pgxpool.
type PgAccountRepository struct {
	db *pgxpool.Pool
}

func NewPgAccountRepository(db *pgxpool.Pool) *PgAccountRepository {
	return &PgAccountRepository{db: db}
}

func (r *PgAccountRepository) FindByUsername(ctx context.Context, username string) (*AccountRecord, error) {
	const q = `SELECT id, username, password_hash, email, role, created_at FROM accounts WHERE username=$1`
	var a AccountRecord
	if err := r.db.QueryRow(ctx, q, username).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Email, &a.Role, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PgAccountRepository) FindByID(ctx context.Context, id int64) (*AccountRecord, error) {
	const q = `SELECT id, username, password_hash, email, role, created_at FROM accounts WHERE id=$1`
	var a AccountRecord
	if err := r.db.QueryRow(ctx, q, id).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Email, &a.Role, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PgAccountRepository) Create(ctx context.Context, username, passwordHash, email, role string) (int64, error) {
	const q = `INSERT INTO accounts (username, password_hash, email, role) VALUES ($1,$2,$3,$4) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, username, passwordHash, email, role).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgAccountRepository) Update(ctx context.Context, id int64, username, passwordHash, email, role string) error {
	const q = `UPDATE accounts SET username=$2, password_hash=$3, email=$4, role=$5 WHERE id=$1`
	tag, err := r.db.Exec(ctx, q, id, username, passwordHash, email, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgAccountRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	return err
}

func (r *PgAccountRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM accounts`)
	return err
}

// List returns paginated accounts without password hash.
func (r *PgAccountRepository) List(ctx context.Context, page, perPage int) ([]AccountListItem, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, username, email, role, created_at FROM accounts ORDER BY id LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]AccountListItem, 0, perPage)
	for rows.Next() {
		var a AccountListItem
		if err := rows.Scan(&a.ID, &a.Username, &a.Email, &a.Role, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *PgAccountRepository) HasAdmin(ctx context.Context) (bool, error) {
	const q = `SELECT 1 FROM accounts WHERE role=$1 LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q, RoleAdmin).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PgAccountRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
