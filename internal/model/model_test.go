package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestConcertDecodesLegacyAndNumericIDs(t *testing.T) {
	data := []byte(`[
		{"id": 42, "artist": "Mayday", "time": "2026/12/31 20:00", "location": "Taipei Dome"},
		{"id": "7", "演出藝人": "Sodagreen", "演出時間": "2026-11-02", "演出地點": "待確認", "票價": "1800"},
		{"id": "8", "artist": "Canonical", "演出藝人": "Legacy", "venue": "Zepp"}
	]`)
	var got []Concert
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got[0].ID != "42" {
		t.Fatalf("numeric id decoded as %q", got[0].ID)
	}
	if got[1].Artist != "Sodagreen" || got[1].Time != "2026-11-02" || got[1].Price != "1800" {
		t.Fatalf("legacy keys not mapped: %+v", got[1])
	}
	if got[1].Location != "" {
		t.Fatalf("pending placeholder should decode as absent, got %q", got[1].Location)
	}
	if got[2].Artist != "Canonical" || got[2].Location != "Zepp" {
		t.Fatalf("canonical keys should win: %+v", got[2])
	}
}

func TestNewReviewListAverage(t *testing.T) {
	reviews := []Review{{Rating: 5}, {Rating: 4}, {Rating: 4}, {Rating: 4}}
	list := NewReviewList("1", reviews, nil)
	if list.Average != 4.25 {
		t.Fatalf("average = %v", list.Average)
	}
	if got := list.DisplayAverage(); got != "4.3" {
		t.Fatalf("display average = %q", got)
	}

	backend := 3.0
	if got := NewReviewList("1", reviews, &backend).Average; got != 3.0 {
		t.Fatalf("backend average ignored: %v", got)
	}
	if got := NewReviewList("1", nil, nil); got.Average != 0 || got.Len() != 0 {
		t.Fatalf("empty list: %+v", got)
	}
}

func TestReviewFormValidate(t *testing.T) {
	tests := []struct {
		name    string
		form    ReviewForm
		field   string
		wantErr bool
	}{
		{name: "valid", form: ReviewForm{Rating: 5, Comment: "great show"}},
		{name: "rating too low", form: ReviewForm{Rating: 0, Comment: "ok"}, field: "rating", wantErr: true},
		{name: "rating too high", form: ReviewForm{Rating: 6, Comment: "ok"}, field: "rating", wantErr: true},
		{name: "blank comment", form: ReviewForm{Rating: 3, Comment: "   "}, field: "comment", wantErr: true},
		{name: "500 runes", form: ReviewForm{Rating: 3, Comment: strings.Repeat("好", MaxCommentLength)}},
		{name: "501 runes", form: ReviewForm{Rating: 3, Comment: strings.Repeat("好", MaxCommentLength+1)}, field: "comment", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := tt.form
			form.Normalize()
			err := form.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("field = %q, want %q", verr.Field, tt.field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatal("validation error should unwrap to ErrValidation")
			}
		})
	}
}

func TestNetworkErrorUnwrapsBoth(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := error(&NetworkError{Op: "concerts.list", Err: cause})
	if !errors.Is(err, ErrNetwork) || !errors.Is(err, cause) {
		t.Fatalf("NetworkError should match ErrNetwork and its cause: %v", err)
	}
	if errors.Is(&BackendError{Op: "x", StatusCode: 400}, ErrNetwork) {
		t.Fatal("BackendError must not match ErrNetwork")
	}
}
