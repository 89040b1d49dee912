package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rollcall/internal/attendance"
	"rollcall/internal/queue"
)

// ListStudents handles GET /students.
func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.students.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]studentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, toStudent(s))
	}
	c.JSON(http.StatusOK, out)
}

// CreateStudent handles POST /students.
func (h *Handler) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	id, err := numberID(req.ID, "id")
	if err != nil {
		h.fail(c, err)
		return
	}

	s, err := h.students.Create(c.Request.Context(), attendance.Student{ID: id, Name: req.Name, Class: req.Class})
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := toStudent(s)
	h.publish(c, queue.StudentCreated, resp)
	c.JSON(http.StatusCreated, resp)
}

// GetStudent handles GET /students/:id.
func (h *Handler) GetStudent(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	s, err := h.students.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toStudent(s))
}

// UpdateStudent handles PUT /students/:id. Omitted fields keep their stored values.
func (h *Handler) UpdateStudent(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req updateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	s, err := h.students.Update(c.Request.Context(), id, attendance.StudentPatch{Name: req.Name, Class: req.Class})
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := toStudent(s)
	h.publish(c, queue.StudentUpdated, resp)
	c.JSON(http.StatusOK, resp)
}

// DeleteStudent handles DELETE /students/:id, removing its attendance too.
func (h *Handler) DeleteStudent(c *gin.Context) {
	id, err := parseID(c.Param("id"), "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	cascaded, err := h.students.Delete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.log.WithFields(logrus.Fields{"student_id": id, "attendance_removed": cascaded}).Info("student deleted")
	h.publish(c, queue.StudentDeleted, gin.H{"id": id, "attendance_removed": cascaded})
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Student id=%d deleted", id)})
}
