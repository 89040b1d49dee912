package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rollcall/internal/store"
)

// RecordRepository persists attendance records in Postgres.
type RecordRepository struct {
	db *sql.DB
}

// NewRecordRepository creates a repo.
func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Mark inserts the status of a student for a day. The existence and duplicate
// checks run in the same transaction as the insert; the primary key still
// decides between racing writers, and the loser gets a Conflict.
func (r *RecordRepository) Mark(ctx context.Context, studentID int64, date time.Time, status Status) (Record, error) {
	if err := ValidateID(studentID); err != nil {
		return Record{}, err
	}
	if !status.Valid() {
		return Record{}, invalid("status must be either Present or Absent")
	}
	day := Day(date)

	var out Record
	err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, studentID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return studentNotFound(studentID)
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM attendance WHERE student_id = $1 AND date = $2)`, studentID, day,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return alreadyMarked(studentID, day, nil)
		}
		return scanRecord(tx.QueryRowContext(ctx, `
			INSERT INTO attendance (student_id, date, status)
			VALUES ($1, $2, $3)
			RETURNING student_id, date, status
		`, studentID, day, string(status)), &out)
	})
	if err != nil {
		switch pgCode(err) {
		case codeUniqueViolation:
			return Record{}, alreadyMarked(studentID, day, err)
		case codeForeignKeyViolation:
			return Record{}, &Error{Kind: KindNotFound, Message: "student with ID " + itoa64(studentID) + " not found", Err: err}
		}
		return Record{}, classify(err, "mark attendance")
	}
	return out, nil
}

// Get returns the record of a student for a day.
func (r *RecordRepository) Get(ctx context.Context, studentID int64, date time.Time) (Record, error) {
	if err := ValidateID(studentID); err != nil {
		return Record{}, err
	}
	var out Record
	err := scanRecord(r.db.QueryRowContext(ctx, `
		SELECT student_id, date, status FROM attendance
		WHERE student_id = $1 AND date = $2
	`, studentID, Day(date)), &out)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, recordNotFound(studentID, date)
		}
		return Record{}, classify(err, "get attendance")
	}
	return out, nil
}

// ListForStudent returns every record of a student ordered by date.
func (r *RecordRepository) ListForStudent(ctx context.Context, studentID int64) ([]Entry, error) {
	if err := ValidateID(studentID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, status FROM attendance
		WHERE student_id = $1
		ORDER BY date
	`, studentID)
	if err != nil {
		return nil, classify(err, "list attendance")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.Date, &status); err != nil {
			return nil, classify(err, "list attendance")
		}
		e.Date = Day(e.Date)
		e.Status = Status(status)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list attendance")
	}
	return entries, nil
}

// ListAll returns every record joined with its student.
func (r *RecordRepository) ListAll(ctx context.Context) ([]Roll, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.class, a.date, a.status
		FROM attendance a
		JOIN students s ON s.id = a.student_id
		ORDER BY a.date, s.id
	`)
	if err != nil {
		return nil, classify(err, "list attendance")
	}
	defer rows.Close()

	rolls := []Roll{}
	for rows.Next() {
		var rl Roll
		var status string
		if err := rows.Scan(&rl.StudentID, &rl.Name, &rl.Class, &rl.Date, &status); err != nil {
			return nil, classify(err, "list attendance")
		}
		rl.Date = Day(rl.Date)
		rl.Status = Status(status)
		rolls = append(rolls, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list attendance")
	}
	return rolls, nil
}

// Update overwrites the status of an existing record.
func (r *RecordRepository) Update(ctx context.Context, studentID int64, date time.Time, status Status) (Record, error) {
	if err := ValidateID(studentID); err != nil {
		return Record{}, err
	}
	if !status.Valid() {
		return Record{}, invalid("status must be either Present or Absent")
	}
	var out Record
	err := scanRecord(r.db.QueryRowContext(ctx, `
		UPDATE attendance SET status = $3
		WHERE student_id = $1 AND date = $2
		RETURNING student_id, date, status
	`, studentID, Day(date), string(status)), &out)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, recordNotFound(studentID, date)
		}
		return Record{}, classify(err, "update attendance")
	}
	return out, nil
}

// Delete removes the record of a student for a day.
func (r *RecordRepository) Delete(ctx context.Context, studentID int64, date time.Time) error {
	if err := ValidateID(studentID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM attendance WHERE student_id = $1 AND date = $2`, studentID, Day(date),
	)
	if err != nil {
		return classify(err, "delete attendance")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "delete attendance")
	}
	if n == 0 {
		return recordNotFound(studentID, date)
	}
	return nil
}

func scanRecord(row *sql.Row, out *Record) error {
	var status string
	if err := row.Scan(&out.StudentID, &out.Date, &status); err != nil {
		return err
	}
	out.Date = Day(out.Date)
	out.Status = Status(status)
	return nil
}

func recordNotFound(studentID int64, date time.Time) error {
	return notFound("attendance for student %d on %s not found", studentID, date.Format(DateLayout))
}

func alreadyMarked(studentID int64, date time.Time, cause error) error {
	return &Error{
		Kind:    KindConflict,
		Message: "attendance already marked for student " + itoa64(studentID) + " on " + date.Format(DateLayout),
		Err:     cause,
	}
}
