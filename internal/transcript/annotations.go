package transcript

// Annotations is the side-channel bundle of provider-supplied intelligence
// data the batch path returns alongside utterances. Entries are keyed either
// by segment (sentiments, emotions) or scoped to the whole document (summary,
// entities, chapters). The realtime path never produces annotations.
type Annotations struct {
	Sentiments []SentimentAnnotation `json:"sentiments,omitempty"`
	Emotions   []EmotionAnnotation   `json:"emotions,omitempty"`
	Summary    string                `json:"summary,omitempty"`
	Entities   []EntityAnnotation    `json:"entities,omitempty"`
	Chapters   []ChapterAnnotation   `json:"chapters,omitempty"`
}

// SentimentAnnotation scores one segment's sentiment.
type SentimentAnnotation struct {
	SegmentID string  `json:"segmentId"`
	Label     string  `json:"label"` // POSITIVE, NEUTRAL, NEGATIVE
	Score     float64 `json:"score"`
}

// EmotionAnnotation labels one segment's dominant emotion.
type EmotionAnnotation struct {
	SegmentID string  `json:"segmentId"`
	Label     string  `json:"label"`
	Score     float64 `json:"score"`
}

// EntityAnnotation is a named entity detected in the full transcript.
type EntityAnnotation struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

// ChapterAnnotation is an automatically detected chapter of the transcript.
type ChapterAnnotation struct {
	Headline string  `json:"headline"`
	Summary  string  `json:"summary,omitempty"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}

// IsEmpty reports whether the bundle carries no annotation data at all.
func (a *Annotations) IsEmpty() bool {
	if a == nil {
		return true
	}
	return len(a.Sentiments) == 0 &&
		len(a.Emotions) == 0 &&
		a.Summary == "" &&
		len(a.Entities) == 0 &&
		len(a.Chapters) == 0
}
