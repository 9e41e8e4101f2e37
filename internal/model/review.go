package model

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxCommentLength is the longest review comment accepted, in runes.
const MaxCommentLength = 500

// Review is one user review of a concert.
type Review struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	ConcertID ConcertID `json:"concert_id"`
	CreatedAt string    `json:"created_at,omitempty"`
}

// ReviewList is the cached review state of one concert.
type ReviewList struct {
	ConcertID ConcertID `json:"concert_id"`
	Reviews   []Review  `json:"reviews"`
	Average   float64   `json:"avg_rating"`
}

// NewReviewList builds a list, preferring the backend's average when given.
func NewReviewList(id ConcertID, reviews []Review, backendAvg *float64) ReviewList {
	list := ReviewList{ConcertID: id, Reviews: append([]Review(nil), reviews...)}
	if backendAvg != nil {
		list.Average = *backendAvg
		return list
	}
	if len(reviews) == 0 {
		return list
	}
	sum := decimal.Zero
	for _, r := range reviews {
		sum = sum.Add(decimal.NewFromInt(int64(r.Rating)))
	}
	list.Average, _ = sum.Div(decimal.NewFromInt(int64(len(reviews)))).Float64()
	return list
}

// DisplayAverage renders the average rounded half-up to one decimal.
func (l ReviewList) DisplayAverage() string {
	return decimal.NewFromFloat(l.Average).Round(1).StringFixed(1)
}

// Len returns the number of cached reviews.
func (l ReviewList) Len() int { return len(l.Reviews) }

// ReviewForm is the user input for a review submission.
type ReviewForm struct {
	Rating  int    `validate:"min=1,max=5"`
	Comment string `validate:"required,max=500"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Normalize trims the comment in place.
func (f *ReviewForm) Normalize() {
	f.Comment = strings.TrimSpace(f.Comment)
}

// Validate checks the form and returns a *ValidationError naming the first
// offending field.
func (f ReviewForm) Validate() error {
	err := formValidator().Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "review", Reason: err.Error()}
	}
	fe := fieldErrs[0]
	switch fe.Field() {
	case "Rating":
		return &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	case "Comment":
		if fe.Tag() == "required" {
			return &ValidationError{Field: "comment", Reason: "must not be empty"}
		}
		return &ValidationError{Field: "comment", Reason: "must be at most 500 characters"}
	}
	return &ValidationError{Field: strings.ToLower(fe.Field()), Reason: fe.Tag()}
}
