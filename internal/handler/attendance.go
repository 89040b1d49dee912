package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/queue"
)

// ListAttendance handles GET /attendance.
func (h *Handler) ListAttendance(c *gin.Context) {
	rolls, err := h.records.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]rollResponse, 0, len(rolls))
	for _, r := range rolls {
		out = append(out, rollResponse{
			StudentID: r.StudentID,
			Name:      r.Name,
			Class:     r.Class,
			Date:      r.Date.Format(attendance.DateLayout),
			Status:    r.Status,
		})
	}
	c.JSON(http.StatusOK, out)
}

// MarkAttendance handles POST /attendance.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	studentID, err := numberID(req.StudentID, "student_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	date, err := attendance.ParseDate(req.Date)
	if err != nil {
		h.fail(c, err)
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}

	rec, err := h.records.Mark(c.Request.Context(), studentID, date, status)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := toRecord(rec)
	h.publish(c, queue.AttendanceMarked, resp)
	c.JSON(http.StatusCreated, resp)
}

// GetAttendance handles GET /attendance/:student_id/:date.
func (h *Handler) GetAttendance(c *gin.Context) {
	studentID, date, ok := h.recordKey(c)
	if !ok {
		return
	}
	rec, err := h.records.Get(c.Request.Context(), studentID, date)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toRecord(rec))
}

// ListStudentAttendance handles GET /attendance/student/:student_id.
func (h *Handler) ListStudentAttendance(c *gin.Context) {
	studentID, err := parseID(c.Param("student_id"), "student_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	entries, err := h.records.ListForStudent(c.Request.Context(), studentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{Date: e.Date.Format(attendance.DateLayout), Status: e.Status})
	}
	c.JSON(http.StatusOK, out)
}

// UpdateAttendance handles PUT /attendance/:student_id/:date.
func (h *Handler) UpdateAttendance(c *gin.Context) {
	studentID, date, ok := h.recordKey(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}

	rec, err := h.records.Update(c.Request.Context(), studentID, date, status)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := toRecord(rec)
	h.publish(c, queue.AttendanceUpdated, resp)
	c.JSON(http.StatusOK, resp)
}

// DeleteAttendance handles DELETE /attendance/:student_id/:date.
func (h *Handler) DeleteAttendance(c *gin.Context) {
	studentID, date, ok := h.recordKey(c)
	if !ok {
		return
	}
	if err := h.records.Delete(c.Request.Context(), studentID, date); err != nil {
		h.fail(c, err)
		return
	}
	day := date.Format(attendance.DateLayout)
	h.publish(c, queue.AttendanceDeleted, gin.H{"student_id": studentID, "date": day})
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Attendance for student %d on %s deleted", studentID, day)})
}

// recordKey parses the (student_id, date) path parameters, writing the error
// response itself when they are malformed.
func (h *Handler) recordKey(c *gin.Context) (int64, time.Time, bool) {
	studentID, err := parseID(c.Param("student_id"), "student_id")
	if err != nil {
		h.fail(c, err)
		return 0, time.Time{}, false
	}
	date, err := attendance.ParseDate(c.Param("date"))
	if err != nil {
		h.fail(c, err)
		return 0, time.Time{}, false
	}
	return studentID, date, true
}
