package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rollcall/internal/attendance"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/queue"
)

// StudentStore is the student repository as seen by the handlers.
type StudentStore interface {
	Create(ctx context.Context, s attendance.Student) (attendance.Student, error)
	Get(ctx context.Context, id int64) (attendance.Student, error)
	List(ctx context.Context) ([]attendance.Student, error)
	Update(ctx context.Context, id int64, patch attendance.StudentPatch) (attendance.Student, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// RecordStore is the attendance repository as seen by the handlers.
type RecordStore interface {
	Mark(ctx context.Context, studentID int64, date time.Time, status attendance.Status) (attendance.Record, error)
	Get(ctx context.Context, studentID int64, date time.Time) (attendance.Record, error)
	ListForStudent(ctx context.Context, studentID int64) ([]attendance.Entry, error)
	ListAll(ctx context.Context) ([]attendance.Roll, error)
	Update(ctx context.Context, studentID int64, date time.Time, status attendance.Status) (attendance.Record, error)
	Delete(ctx context.Context, studentID int64, date time.Time) error
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Options configures optional collaborators of a Handler.
type Options struct {
	Events queue.Queue
	Log    logrus.FieldLogger
	// ExposeStoreErrors adds the raw store error to 500 bodies as "details".
	ExposeStoreErrors bool
	Health            map[string]HealthCheck
}

// Handler validates requests, calls the repositories and maps their outcomes to HTTP responses.
type Handler struct {
	students     StudentStore
	records      RecordStore
	events       queue.Queue
	log          logrus.FieldLogger
	exposeErrors bool
	health       map[string]HealthCheck
}

// New wires a Handler.
func New(students StudentStore, records RecordStore, opts Options) *Handler {
	registerValidators()
	if opts.Events == nil {
		opts.Events = queue.Discard{}
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Handler{
		students:     students,
		records:      records,
		events:       opts.Events,
		log:          opts.Log,
		exposeErrors: opts.ExposeStoreErrors,
		health:       opts.Health,
	}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	r.GET("/students", h.ListStudents)
	r.POST("/students", h.CreateStudent)
	r.GET("/students/:id", h.GetStudent)
	r.PUT("/students/:id", h.UpdateStudent)
	r.DELETE("/students/:id", h.DeleteStudent)

	r.GET("/attendance", h.ListAttendance)
	r.POST("/attendance", h.MarkAttendance)
	r.GET("/attendance/student/:student_id", h.ListStudentAttendance)
	r.GET("/attendance/:student_id/:date", h.GetAttendance)
	r.PUT("/attendance/:student_id/:date", h.UpdateAttendance)
	r.DELETE("/attendance/:student_id/:date", h.DeleteAttendance)
}

// Healthz pings every registered dependency.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// publish emits a change event. Failures are logged and never fail the request.
func (h *Handler) publish(c *gin.Context, typ string, body any) {
	msg, err := queue.NewMessage(typ, body)
	if err == nil {
		err = h.events.Publish(c.Request.Context(), msg)
	}
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"event":      typ,
			"request_id": httpmiddleware.RequestIDFrom(c),
		}).Warn("queue publish failed")
	}
}
