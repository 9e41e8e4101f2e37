package model

import "encoding/json"

// StatusSuccess is the only envelope status whose payload may be trusted.
const StatusSuccess = "success"

// Envelope carries the discriminator every backend response includes.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the payload fields can be trusted.
func (e Envelope) OK() bool { return e.Status == StatusSuccess }

// ConcertsResp is returned by GET concerts and POST concerts/search.
type ConcertsResp struct {
	Envelope
	Total    int          `json:"total,omitempty"`
	Query    string       `json:"query,omitempty"`
	Count    int          `json:"count,omitempty"`
	Concerts []RawConcert `json:"concerts"`
}

// RawConcert keeps the undecoded record so one malformed entry cannot fail
// the whole list.
type RawConcert = json.RawMessage

// FollowsResp is returned by GET follows.
type FollowsResp struct {
	Envelope
	Total    int `json:"total,omitempty"`
	Concerts []struct {
		ID ConcertID `json:"id"`
	} `json:"concerts"`
}

// RemindersResp is returned by GET reminders.
type RemindersResp struct {
	Envelope
	Reminders map[ConcertID]Reminder `json:"reminders"`
}

// ReviewsResp is returned by GET reviews/{id}.
type ReviewsResp struct {
	Envelope
	Reviews   []Review `json:"reviews"`
	AvgRating *float64 `json:"avg_rating"`
}

// ArtistListResp is returned by GET concerts/by-artist/list.
type ArtistListResp struct {
	Envelope
	TotalArtists int           `json:"total_artists,omitempty"`
	ArtistList   []ArtistGroup `json:"artist_list"`
}

// GenerateResp is returned by POST concerts/generate-all.
type GenerateResp struct {
	Envelope
	Count int `json:"count"`
}

// HealthResp is returned by GET health.
type HealthResp struct {
	Envelope
	Timestamp string `json:"timestamp,omitempty"`
}

// ReminderReq is the body of POST reminders/{id}.
type ReminderReq struct {
	Type string `json:"type"`
}

// ReviewReq is the body of POST reviews/{id}.
type ReviewReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// SearchReq is the body of POST concerts/search.
type SearchReq struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}
