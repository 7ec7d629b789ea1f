package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Student is a managed student record.
type Student struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Address     string `json:"address"`
}

// StudentRepository defines persistence operations for students.
type StudentRepository interface {
	Get(ctx context.Context, id int64) (*Student, error)
	List(ctx context.Context, page, perPage int) ([]Student, int, error)
	ListAll(ctx context.Context) ([]Student, error)
	Create(ctx context.Context, s Student) (int64, error)
	Update(ctx context.Context, s Student) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// PgStudentRepository implements StudentRepository using pgxpool.
type PgStudentRepository struct {
	db *pgxpool.Pool
}

func NewPgStudentRepository(db *pgxpool.Pool) *PgStudentRepository {
	return &PgStudentRepository{db: db}
}

func (r *PgStudentRepository) Get(ctx context.Context, id int64) (*Student, error) {
	const q = `SELECT id, name, phone_number, email, address FROM students WHERE id=$1`
	var s Student
	if err := r.db.QueryRow(ctx, q, id).Scan(&s.ID, &s.Name, &s.PhoneNumber, &s.Email, &s.Address); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PgStudentRepository) List(ctx context.Context, page, perPage int) ([]Student, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, name, phone_number, email, address FROM students ORDER BY id LIMIT $1 OFFSET $2`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]Student, 0, perPage)
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.PhoneNumber, &s.Email, &s.Address); err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

// ListAll returns every student ordered by id. Used by the CSV export.
func (r *PgStudentRepository) ListAll(ctx context.Context) ([]Student, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, phone_number, email, address FROM students ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.PhoneNumber, &s.Email, &s.Address); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *PgStudentRepository) Create(ctx context.Context, s Student) (int64, error) {
	const q = `INSERT INTO students (name, phone_number, email, address) VALUES ($1,$2,$3,$4) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, s.Name, s.PhoneNumber, s.Email, s.Address).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgStudentRepository) Update(ctx context.Context, s Student) error {
	const q = `UPDATE students SET name=$2, phone_number=$3, email=$4, address=$5 WHERE id=$1`
	tag, err := r.db.Exec(ctx, q, s.ID, s.Name, s.PhoneNumber, s.Email, s.Address)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgStudentRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM students WHERE id=$1`, id)
	return err
}

func (r *PgStudentRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM students`)
	return err
}

func (r *PgStudentRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
