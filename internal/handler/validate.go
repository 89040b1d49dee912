package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"rollcall/internal/attendance"
)

type createStudentRequest struct {
	ID    json.Number `json:"id" binding:"required,intid"`
	Name  string      `json:"name" binding:"required,max=100"`
	Class string      `json:"class" binding:"required,max=50"`
}

type updateStudentRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=100"`
	Class *string `json:"class" binding:"omitempty,min=1,max=50"`
}

type markRequest struct {
	StudentID json.Number `json:"student_id" binding:"required,intid"`
	Date      string      `json:"date" binding:"required,isodate"`
	Status    string      `json:"status" binding:"required,attstatus"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,attstatus"`
}

var registerOnce sync.Once

// registerValidators installs the custom binding tags on gin's validator:
// intid (integer in INTEGER range, number or numeric string), isodate
// (YYYY-MM-DD) and attstatus (Present|Absent). Field names in errors follow
// the json tags.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		for tag, fn := range map[string]validator.Func{
			"intid": func(fl validator.FieldLevel) bool {
				_, err := strconv.ParseInt(fl.Field().String(), 10, 32)
				return err == nil
			},
			"isodate": func(fl validator.FieldLevel) bool {
				_, err := attendance.ParseDate(fl.Field().String())
				return err == nil
			},
			"attstatus": func(fl validator.FieldLevel) bool {
				return attendance.Status(fl.Field().String()).Valid()
			},
		} {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("register %s validator: %v", tag, err))
			}
		}
	})
}

// bindError turns a gin binding failure into an InvalidInput error with a
// message naming the offending field.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "missing required field: " + field
		case "intid":
			msg = field + " must be a valid integer"
		case "isodate":
			msg = "invalid date format, use YYYY-MM-DD"
		case "attstatus":
			msg = "status must be either Present or Absent"
		case "min":
			msg = field + " must not be empty"
		case "max":
			msg = field + " must be at most " + fe.Param() + " characters"
		default:
			msg = "invalid value for field " + field
		}
		return invalid(msg)
	}
	if errors.Is(err, io.EOF) {
		return invalid("no data provided")
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return invalid(fmt.Sprintf("field %s has the wrong type", typeErr.Field))
	}
	return invalid("invalid request body")
}

func invalid(msg string) error {
	return &attendance.Error{Kind: attendance.KindInvalidInput, Message: msg}
}

func parseID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, invalid(field + " must be a valid integer")
	}
	return id, nil
}

// numberID converts a validated json.Number.
func numberID(n json.Number, field string) (int64, error) {
	return parseID(n.String(), field)
}
