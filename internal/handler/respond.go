package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rollcall/internal/attendance"
	"rollcall/internal/httpmiddleware"
)

type studentResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class"`
}

type recordResponse struct {
	StudentID int64             `json:"student_id"`
	Date      string            `json:"date"`
	Status    attendance.Status `json:"status"`
}

type entryResponse struct {
	Date   string            `json:"date"`
	Status attendance.Status `json:"status"`
}

type rollResponse struct {
	StudentID int64             `json:"student_id"`
	Name      string            `json:"name"`
	Class     string            `json:"class"`
	Date      string            `json:"date"`
	Status    attendance.Status `json:"status"`
}

func toStudent(s attendance.Student) studentResponse {
	return studentResponse{ID: s.ID, Name: s.Name, Class: s.Class}
}

func toRecord(r attendance.Record) recordResponse {
	return recordResponse{StudentID: r.StudentID, Date: r.Date.Format(attendance.DateLayout), Status: r.Status}
}

// statusFor maps an error kind to the response code.
func statusFor(kind attendance.Kind) int {
	switch kind {
	case attendance.KindNotFound:
		return http.StatusNotFound
	case attendance.KindInvalidInput, attendance.KindConflict, attendance.KindDuplicateKey:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the response for a failed operation. Messages of client errors
// are returned verbatim; server errors are logged and only described in the
// body when store error exposure is enabled.
func (h *Handler) fail(c *gin.Context, err error) {
	kind := attendance.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("request_id", httpmiddleware.RequestIDFrom(c)).
			Errorf("%s %s failed", c.Request.Method, c.FullPath())
		body := gin.H{"error": "internal server error"}
		if h.exposeErrors {
			body["details"] = err.Error()
		}
		c.JSON(status, body)
		return
	}
	msg := err.Error()
	var e *attendance.Error
	if errors.As(err, &e) && e.Message != "" {
		msg = e.Message
	}
	c.JSON(status, gin.H{"error": msg})
}
