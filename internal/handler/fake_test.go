package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"rollcall/internal/attendance"
)

// memStore is an in-memory stand-in for both repositories. It enforces the
// same key, reference and cascade rules as the Postgres schema.
type memStore struct {
	mu       sync.Mutex
	students map[int64]attendance.Student
	records  map[recordKey]attendance.Status
	err      error
}

type recordKey struct {
	studentID int64
	day       string
}

func newMemStore() *memStore {
	return &memStore{
		students: make(map[int64]attendance.Student),
		records:  make(map[recordKey]attendance.Status),
	}
}

func key(id int64, date time.Time) recordKey {
	return recordKey{studentID: id, day: date.Format(attendance.DateLayout)}
}

func notFoundErr(format string, args ...any) error {
	return &attendance.Error{Kind: attendance.KindNotFound, Message: fmt.Sprintf(format, args...)}
}

type studentView struct{ *memStore }

type recordView struct{ *memStore }

func (m studentView) Create(_ context.Context, s attendance.Student) (attendance.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return attendance.Student{}, m.err
	}
	if _, ok := m.students[s.ID]; ok {
		return attendance.Student{}, &attendance.Error{
			Kind:    attendance.KindDuplicateKey,
			Message: fmt.Sprintf("student with ID %d already exists", s.ID),
		}
	}
	m.students[s.ID] = s
	return s, nil
}

func (m studentView) Get(_ context.Context, id int64) (attendance.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return attendance.Student{}, m.err
	}
	s, ok := m.students[id]
	if !ok {
		return attendance.Student{}, notFoundErr("student with ID %d not found", id)
	}
	return s, nil
}

func (m studentView) List(context.Context) ([]attendance.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]attendance.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m studentView) Update(_ context.Context, id int64, patch attendance.StudentPatch) (attendance.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if patch.Empty() {
		return attendance.Student{}, &attendance.Error{Kind: attendance.KindInvalidInput, Message: "provide name or class to update"}
	}
	s, ok := m.students[id]
	if !ok {
		return attendance.Student{}, notFoundErr("student with ID %d not found", id)
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Class != nil {
		s.Class = *patch.Class
	}
	m.students[id] = s
	return s, nil
}

func (m studentView) Delete(_ context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return 0, notFoundErr("student with ID %d not found", id)
	}
	var removed int64
	for k := range m.records {
		if k.studentID == id {
			delete(m.records, k)
			removed++
		}
	}
	delete(m.students, id)
	return removed, nil
}

func (m recordView) Mark(_ context.Context, studentID int64, date time.Time, status attendance.Status) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[studentID]; !ok {
		return attendance.Record{}, notFoundErr("student with ID %d not found", studentID)
	}
	k := key(studentID, date)
	if _, ok := m.records[k]; ok {
		return attendance.Record{}, &attendance.Error{
			Kind:    attendance.KindConflict,
			Message: fmt.Sprintf("attendance already marked for student %d on %s", studentID, k.day),
		}
	}
	m.records[k] = status
	return attendance.Record{StudentID: studentID, Date: date, Status: status}, nil
}

func (m recordView) Get(_ context.Context, studentID int64, date time.Time) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(studentID, date)
	status, ok := m.records[k]
	if !ok {
		return attendance.Record{}, notFoundErr("attendance for student %d on %s not found", studentID, k.day)
	}
	return attendance.Record{StudentID: studentID, Date: date, Status: status}, nil
}

func (m recordView) ListForStudent(_ context.Context, studentID int64) ([]attendance.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []attendance.Entry{}
	for k, status := range m.records {
		if k.studentID == studentID {
			d, _ := time.Parse(attendance.DateLayout, k.day)
			out = append(out, attendance.Entry{Date: d, Status: status})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m recordView) ListAll(context.Context) ([]attendance.Roll, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []attendance.Roll{}
	for k, status := range m.records {
		s := m.students[k.studentID]
		d, _ := time.Parse(attendance.DateLayout, k.day)
		out = append(out, attendance.Roll{StudentID: s.ID, Name: s.Name, Class: s.Class, Date: d, Status: status})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out, nil
}

func (m recordView) Update(_ context.Context, studentID int64, date time.Time, status attendance.Status) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(studentID, date)
	if _, ok := m.records[k]; !ok {
		return attendance.Record{}, notFoundErr("attendance for student %d on %s not found", studentID, k.day)
	}
	m.records[k] = status
	return attendance.Record{StudentID: studentID, Date: date, Status: status}, nil
}

func (m recordView) Delete(_ context.Context, studentID int64, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(studentID, date)
	if _, ok := m.records[k]; !ok {
		return notFoundErr("attendance for student %d on %s not found", studentID, k.day)
	}
	delete(m.records, k)
	return nil
}

var errDown = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
