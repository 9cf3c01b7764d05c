package registry

import (
	"reflect"
	"regexp"
	"strings"

	"eduadmin/internal/schedule"

	"github.com/go-playground/validator/v10"
)

// custom validation tags
const (
	tagNotBlank = "notblank"
	tagDate     = "isodate"
	tagClock    = "clock"
)

var reClock = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

func newValidator() *validator.Validate {
	v := validator.New()

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(tagNotBlank, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && strings.TrimSpace(s) != ""
	})
	_ = v.RegisterValidation(tagDate, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		_, err := schedule.ParseDate(s)
		return err == nil
	})
	_ = v.RegisterValidation(tagClock, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && reClock.MatchString(strings.TrimSpace(s))
	})
	return v
}

// StudentInput is the editable part of a student.
type StudentInput struct {
	Name   string `json:"name" validate:"notblank,max=64"`
	Grade  string `json:"grade" validate:"max=16"`
	Remark string `json:"remark" validate:"max=500"`
}

// CourseInput is the editable part of a course. Type accepts the stored value
// or its label (春季 etc.); TimeSlot accepts a slot ID ("A") or label ("A 08:00").
type CourseInput struct {
	Name         string   `json:"name" validate:"max=64"`
	Type         string   `json:"type" validate:"notblank"`
	ClassDay     string   `json:"classDay"`
	HolidayRule  string   `json:"holidayRule"`
	TimeSlot     string   `json:"timeSlot" validate:"notblank"`
	StartDate    string   `json:"startDate" validate:"notblank,isodate"`
	TotalLessons int      `json:"totalLessons" validate:"gte=0,lte=5000"`
	Students     []string `json:"students"`
}

// CopyOptions control CopyCourse. Empty StartDate means today; empty Name is
// regenerated.
type CopyOptions struct {
	Name      string `json:"name" validate:"max=64"`
	StartDate string `json:"startDate" validate:"omitempty,isodate"`
}

type EventInput struct {
	Title string `json:"title" validate:"notblank,max=128"`
	Date  string `json:"date" validate:"notblank,isodate"`
	Time  string `json:"time" validate:"omitempty,clock"`
}

type holidayInput struct {
	Date string `json:"date" validate:"notblank,isodate"`
	Name string `json:"name" validate:"notblank,max=64"`
}

type slotInput struct {
	ID   string `json:"id" validate:"notblank,max=8"`
	Time string `json:"time" validate:"notblank,clock"`
}

func (r *Registry) check(v any) error {
	if err := r.validate.Struct(v); err != nil {
		return fromValidator(err)
	}
	return nil
}
