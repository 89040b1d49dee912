package attendance

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the only accepted wire format for attendance dates.
const DateLayout = "2006-01-02"

const (
	maxNameLen  = 100
	maxClassLen = 50
)

// Status is the attendance state of a student on a day.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", invalid("status must be either Present or Absent")
	}
	return s, nil
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, invalid("invalid date format, use YYYY-MM-DD")
	}
	return d, nil
}

// Day strips the clock and location from t.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Student is a tracked pupil. ID is assigned by the caller.
type Student struct {
	ID    int64
	Name  string
	Class string
}

// StudentPatch carries the fields of an update; nil fields keep their stored value.
type StudentPatch struct {
	Name  *string
	Class *string
}

// Empty reports whether the patch changes nothing.
func (p StudentPatch) Empty() bool {
	return p.Name == nil && p.Class == nil
}

// Record is one attendance entry for a student on a date.
type Record struct {
	StudentID int64
	Date      time.Time
	Status    Status
}

// Entry is a record listed for a single student.
type Entry struct {
	Date   time.Time
	Status Status
}

// Roll is a record joined with its student.
type Roll struct {
	StudentID int64
	Name      string
	Class     string
	Date      time.Time
	Status    Status
}

// ValidateID checks that id fits the INTEGER key column.
func ValidateID(id int64) error {
	if id < math.MinInt32 || id > math.MaxInt32 {
		return invalid(fmt.Sprintf("id %d is out of range", id))
	}
	return nil
}

func validateStudent(s Student) error {
	if err := ValidateID(s.ID); err != nil {
		return err
	}
	if err := validateText("name", s.Name, maxNameLen); err != nil {
		return err
	}
	return validateText("class", s.Class, maxClassLen)
}

func validateText(field, value string, max int) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field + " must not be empty")
	}
	if len([]rune(value)) > max {
		return invalid(fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return nil
}
