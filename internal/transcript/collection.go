package transcript

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Collection is an immutable, start-time-ordered sequence of segments. Every
// operation returns a new collection; the receiver is never altered.
type Collection struct {
	segments  []Segment
	createdAt time.Time
}

// NewCollection builds a collection from the given segments, sorted by start
// time regardless of input order.
func NewCollection(segments ...Segment) Collection {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sortByStart(sorted)
	return Collection{
		segments:  sorted,
		createdAt: time.Now().UTC(),
	}
}

func sortByStart(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})
}

// Add returns a new collection containing the receiver's segments plus the
// given one, re-sorted by start time.
func (c Collection) Add(segment Segment) Collection {
	segments := make([]Segment, 0, len(c.segments)+1)
	segments = append(segments, c.segments...)
	segments = append(segments, segment)
	sortByStart(segments)
	return Collection{
		segments:  segments,
		createdAt: c.createdAt,
	}
}

// Segments returns a copy of the ordered segment slice.
func (c Collection) Segments() []Segment {
	out := make([]Segment, len(c.segments))
	copy(out, c.segments)
	return out
}

// Len returns the number of segments.
func (c Collection) Len() int {
	return len(c.segments)
}

// IsEmpty reports whether the collection holds no segments.
func (c Collection) IsEmpty() bool {
	return len(c.segments) == 0
}

// CreatedAt returns the collection's creation timestamp.
func (c Collection) CreatedAt() time.Time {
	return c.createdAt
}

// FinalsOnly returns a new collection holding only final segments.
func (c Collection) FinalsOnly() Collection {
	return c.filter(func(s Segment) bool { return s.Final })
}

// FilterChannel returns a new collection holding only segments attributed to
// the given channel.
func (c Collection) FilterChannel(channel int) Collection {
	return c.filter(func(s Segment) bool { return s.OnChannel(channel) })
}

func (c Collection) filter(keep func(Segment) bool) Collection {
	segments := make([]Segment, 0, len(c.segments))
	for _, s := range c.segments {
		if keep(s) {
			segments = append(segments, s)
		}
	}
	return Collection{
		segments:  segments,
		createdAt: c.createdAt,
	}
}

// TotalDuration returns the covered time span in seconds: the distance from
// the earliest segment start to the latest segment end.
func (c Collection) TotalDuration() float64 {
	if len(c.segments) == 0 {
		return 0
	}
	minStart := c.segments[0].Start
	maxEnd := c.segments[0].End
	for _, s := range c.segments[1:] {
		if s.Start < minStart {
			minStart = s.Start
		}
		if s.End > maxEnd {
			maxEnd = s.End
		}
	}
	return maxEnd - minStart
}

// SpokenDuration returns the sum of individual segment durations in seconds.
// The difference between TotalDuration and SpokenDuration is pause time.
func (c Collection) SpokenDuration() float64 {
	var total float64
	for _, s := range c.segments {
		total += s.Duration()
	}
	return total
}

// WordCount returns the total number of words across all segments.
func (c Collection) WordCount() int {
	var total int
	for _, s := range c.segments {
		total += s.WordCount()
	}
	return total
}

// FullText concatenates segment texts in start-time order.
func (c Collection) FullText() string {
	parts := make([]string, 0, len(c.segments))
	for _, s := range c.segments {
		parts = append(parts, strings.TrimSpace(s.Text))
	}
	return strings.Join(parts, " ")
}

type collectionJSON struct {
	Segments  []Segment `json:"segments"`
	CreatedAt time.Time `json:"createdAt"`
}

// MarshalJSON implements json.Marshaler.
func (c Collection) MarshalJSON() ([]byte, error) {
	return json.Marshal(collectionJSON{
		Segments:  c.segments,
		CreatedAt: c.createdAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler. Segments are re-sorted so the
// ordering invariant survives deserialization of hand-edited payloads.
func (c *Collection) UnmarshalJSON(data []byte) error {
	var raw collectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sortByStart(raw.Segments)
	c.segments = raw.Segments
	c.createdAt = raw.CreatedAt
	return nil
}
