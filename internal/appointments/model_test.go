package appointments

import (
	"errors"
	"testing"
	"time"
)

var anchor = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func validRequest() *Request {
	return &Request{
		Provider: "Dr. Ukwu",
		Date:     "2026-03-10",
		Time:     "09:00",
		Category: CategoryCheckup,
	}
}

func TestValidateAcceptsToday(t *testing.T) {
	if err := validRequest().Validate(anchor); err != nil {
		t.Fatalf("expected today to be bookable, got %v", err)
	}
}

func TestValidateRejectsYesterday(t *testing.T) {
	req := validRequest()
	req.Date = "2026-03-09"
	if err := req.Validate(anchor); !errors.Is(err, ErrPastDate) {
		t.Errorf("expected ErrPastDate, got %v", err)
	}
}

func TestValidateFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		want   error
	}{
		{"missing provider", func(r *Request) { r.Provider = "  " }, ErrMissingProvider},
		{"unknown category", func(r *Request) { r.Category = "surgery" }, ErrInvalidCategory},
		{"bad date", func(r *Request) { r.Date = "03/10/2026" }, ErrInvalidDate},
		{"bad time", func(r *Request) { r.Time = "9am" }, ErrInvalidTime},
		{"out of range time", func(r *Request) { r.Time = "25:00" }, ErrInvalidTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			if err := req.Validate(anchor); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range []Category{CategoryCheckup, CategoryEmergency, CategoryMentalHealth} {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if Category("botox").Valid() {
		t.Error("unknown category should be invalid")
	}
}
