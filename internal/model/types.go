package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ConcertID identifies one performance event. The backend emits both string
// and numeric IDs; both decode to the same decimal string form.
type ConcertID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ConcertID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("concert id: %w", err)
		}
		*id = ConcertID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("concert id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ConcertID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ConcertID(n.String())
	return nil
}

// String implements fmt.Stringer.
func (id ConcertID) String() string { return string(id) }

// Concert is one performance event as delivered by the backend. Values are
// immutable once loaded; a refresh replaces the whole set.
type Concert struct {
	ID         ConcertID `json:"id"`
	Artist     string    `json:"artist"`
	Time       string    `json:"time"`
	Location   string    `json:"location,omitempty"`
	SourceSite string    `json:"source_site,omitempty"`
	TicketURL  string    `json:"url,omitempty"`
	Price      string    `json:"price,omitempty"`
	CrawledAt  string    `json:"crawled_at,omitempty"`
}

// legacyConcert mirrors the crawler's original record layout. Both key sets
// may appear in one payload; canonical keys take precedence.
type legacyConcert struct {
	ID         ConcertID `json:"id"`
	Artist     string    `json:"artist"`
	Time       string    `json:"time"`
	Date       string    `json:"date"`
	Location   string    `json:"location"`
	Venue      string    `json:"venue"`
	SourceSite string    `json:"source_site"`
	TicketURL  string    `json:"url"`
	Price      string    `json:"price"`
	CrawledAt  string    `json:"crawled_at"`

	ZhArtist     string `json:"演出藝人"`
	ZhTime       string `json:"演出時間"`
	ZhLocation   string `json:"演出地點"`
	ZhSourceSite string `json:"來源網站"`
	ZhTicketURL  string `json:"網址"`
	ZhPrice      string `json:"票價"`
	ZhCrawledAt  string `json:"爬取時間"`
}

// UnmarshalJSON normalizes the heterogeneous record shapes the backend has
// produced over time into one Concert.
func (c *Concert) UnmarshalJSON(data []byte) error {
	var raw legacyConcert
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Concert{
		ID:         raw.ID,
		Artist:     firstNonBlank(raw.Artist, raw.ZhArtist),
		Time:       firstNonBlank(raw.Time, raw.Date, raw.ZhTime),
		Location:   firstNonBlank(raw.Location, raw.Venue, raw.ZhLocation),
		SourceSite: firstNonBlank(raw.SourceSite, raw.ZhSourceSite),
		TicketURL:  firstNonBlank(raw.TicketURL, raw.ZhTicketURL),
		Price:      firstNonBlank(raw.Price, raw.ZhPrice),
		CrawledAt:  firstNonBlank(raw.CrawledAt, raw.ZhCrawledAt),
	}
	return nil
}

// PendingValue is what the AI search and the crawler emit for fields they
// could not determine.
const PendingValue = "待確認"

func firstNonBlank(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && v != PendingValue {
			return v
		}
	}
	return ""
}

// ConcertBatch is one decoded concert list. Malformed counts records that
// could not be decoded at all and were left out of Concerts.
type ConcertBatch struct {
	Concerts  []Concert
	Malformed int
}

// ArtistGroup is a derived bucket of concerts sharing one canonical artist key.
type ArtistGroup struct {
	CanonicalArtist string    `json:"artist"`
	Concerts        []Concert `json:"concerts"`
	Count           int       `json:"concert_count"`
}

// ReminderTypeOnSale is the only reminder type modelled.
const ReminderTypeOnSale = "on_sale"

// Reminder is a per-concert notification trigger.
type Reminder struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

// CountdownStatus tags a Countdown.
type CountdownStatus string

const (
	CountdownUpcoming CountdownStatus = "upcoming"
	CountdownPast     CountdownStatus = "past"
)

// Countdown is the time remaining until a concert starts. A nil *Countdown
// means the date could not be parsed.
type Countdown struct {
	Status CountdownStatus `json:"status"`
	Days   int             `json:"days,omitempty"`
	Hours  int             `json:"hours,omitempty"`
}

// Placeholders carries the strings substituted for absent display values.
type Placeholders struct {
	Unknown string
}
