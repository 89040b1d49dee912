package attendance

import (
	"context"
	"database/sql"
	"errors"

	"rollcall/internal/store"
)

// StudentRepository persists students in Postgres.
type StudentRepository struct {
	db *sql.DB
}

// NewStudentRepository creates a repo.
func NewStudentRepository(db *sql.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a student under its caller-assigned id.
func (r *StudentRepository) Create(ctx context.Context, s Student) (Student, error) {
	if err := validateStudent(s); err != nil {
		return Student{}, err
	}
	var out Student
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, s.ID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return duplicateStudent(s.ID, nil)
		}
		return tx.QueryRowContext(ctx, `
			INSERT INTO students (id, name, class)
			VALUES ($1, $2, $3)
			RETURNING id, name, class
		`, s.ID, s.Name, s.Class).Scan(&out.ID, &out.Name, &out.Class)
	})
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return Student{}, duplicateStudent(s.ID, err)
		}
		return Student{}, classify(err, "create student")
	}
	return out, nil
}

// Get returns a single student by id.
func (r *StudentRepository) Get(ctx context.Context, id int64) (Student, error) {
	if err := ValidateID(id); err != nil {
		return Student{}, err
	}
	var s Student
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, class FROM students WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Class)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, studentNotFound(id)
		}
		return Student{}, classify(err, "get student")
	}
	return s, nil
}

// List returns all students ordered by id.
func (r *StudentRepository) List(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, class FROM students ORDER BY id`)
	if err != nil {
		return nil, classify(err, "list students")
	}
	defer rows.Close()

	students := []Student{}
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Class); err != nil {
			return nil, classify(err, "list students")
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list students")
	}
	return students, nil
}

// Update merges the patch into the stored row. The row is locked while merging
// so concurrent partial updates do not overwrite each other's fields.
func (r *StudentRepository) Update(ctx context.Context, id int64, patch StudentPatch) (Student, error) {
	if err := ValidateID(id); err != nil {
		return Student{}, err
	}
	if patch.Empty() {
		return Student{}, invalid("provide name or class to update")
	}
	var out Student
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var cur Student
		err := tx.QueryRowContext(ctx,
			`SELECT id, name, class FROM students WHERE id = $1 FOR UPDATE`, id,
		).Scan(&cur.ID, &cur.Name, &cur.Class)
		if errors.Is(err, sql.ErrNoRows) {
			return studentNotFound(id)
		}
		if err != nil {
			return err
		}
		if patch.Name != nil {
			cur.Name = *patch.Name
		}
		if patch.Class != nil {
			cur.Class = *patch.Class
		}
		if err := validateStudent(cur); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, `
			UPDATE students SET name = $2, class = $3
			WHERE id = $1
			RETURNING id, name, class
		`, id, cur.Name, cur.Class).Scan(&out.ID, &out.Name, &out.Class)
	})
	if err != nil {
		return Student{}, classify(err, "update student")
	}
	return out, nil
}

// Delete removes a student and every attendance record that references it.
// It returns the number of attendance records removed.
func (r *StudentRepository) Delete(ctx context.Context, id int64) (int64, error) {
	if err := ValidateID(id); err != nil {
		return 0, err
	}
	var cascaded int64
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var found int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM students WHERE id = $1 FOR UPDATE`, id,
		).Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			return studentNotFound(id)
		}
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE student_id = $1`, id)
		if err != nil {
			return err
		}
		if cascaded, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return 0, classify(err, "delete student")
	}
	return cascaded, nil
}

func studentNotFound(id int64) error {
	return notFound("student with ID %d not found", id)
}

func duplicateStudent(id int64, cause error) error {
	return &Error{Kind: KindDuplicateKey, Message: "student with ID " + itoa64(id) + " already exists", Err: cause}
}
