// Package intelligence derives objective delivery metrics from a finalized
// transcript: pacing, filler usage, confidence, and a composite delivery
// score. Everything here is deterministic and side-effect-free; identical
// input always produces an identical report.
package intelligence

import (
	"fmt"
	"strings"

	"speech-capture-service/internal/transcript"
)

const (
	// Target speaking pace and the tolerated band around it.
	targetWPM    = 150.0
	paceBand     = 0.20
	highEnergy   = 160.0
	mediumEnergy = 120.0

	// Filler percentage grade thresholds.
	gradeExcellentMax = 1.0
	gradeGoodMax      = 2.5
	gradeFairMax      = 5.0

	// Confidence floor for the filler-based heuristic.
	heuristicFloor = 0.3

	// Delivery score scale and weights. Downstream scoring consumers depend
	// on these numerically; do not change them without coordinating.
	scoreScale       = 25.0
	weightPace       = 0.25
	weightPause      = 0.20
	weightFiller     = 0.30
	weightConfidence = 0.25
)

// fillerLexicon is the fixed set of filler words and phrases.
var fillerSingles = []string{"um", "uh", "like", "actually", "basically", "literally"}

const fillerBigramFirst, fillerBigramSecond = "you", "know"

// SpeechMetrics describes pacing over the whole transcript.
type SpeechMetrics struct {
	TotalWords           int     `json:"totalWords"`
	TotalDurationSeconds float64 `json:"totalDurationSeconds"`
	PauseDurationSeconds float64 `json:"pauseDurationSeconds"`
	WordsPerMinute       float64 `json:"wordsPerMinute"`
	SpeakingRate         string  `json:"speakingRate"` // appropriate, too_slow, too_fast
}

// FillerAnalysis describes filler-word usage.
type FillerAnalysis struct {
	FillerCount      int            `json:"fillerCount"`
	FillerPercentage float64        `json:"fillerPercentage"`
	Grade            string         `json:"grade"` // excellent, good, fair, needs_improvement
	Occurrences      map[string]int `json:"occurrences,omitempty"`
}

// ConfidenceMetrics describes how assured the delivery sounds.
type ConfidenceMetrics struct {
	AverageConfidence float64 `json:"averageConfidence"`
	Estimated         bool    `json:"estimated"` // true when no provider confidence was available
	EnergyLevel       string  `json:"energyLevel"`
}

// Report is the immutable intelligence output for one finalized session.
type Report struct {
	Speech     SpeechMetrics     `json:"speech"`
	Fillers    FillerAnalysis    `json:"fillers"`
	Confidence ConfidenceMetrics `json:"confidence"`

	// DeliveryScore is on a fixed 0-25 scale.
	DeliveryScore float64 `json:"deliveryScore"`

	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Coaching     []string `json:"coaching"`
}

// Extract computes the intelligence report for a finalized transcript.
// Annotations, when the batch path supplied them, contribute additional
// insight strings; they never change the numeric metrics.
func Extract(c transcript.Collection, ann *transcript.Annotations) Report {
	if c.WordCount() == 0 {
		return Report{
			Coaching: []string{"No speech was captured; nothing to analyze."},
		}
	}

	speech := speechMetrics(c)
	fillers := fillerAnalysis(c)
	confidence := confidenceMetrics(c, speech, fillers)

	report := Report{
		Speech:        speech,
		Fillers:       fillers,
		Confidence:    confidence,
		DeliveryScore: deliveryScore(speech, fillers, confidence),
	}
	report.Strengths, report.Improvements, report.Coaching = insights(speech, fillers, confidence, ann)
	return report
}

func speechMetrics(c transcript.Collection) SpeechMetrics {
	total := c.TotalDuration()
	spoken := c.SpokenDuration()
	pause := total - spoken
	if pause < 0 {
		// Overlapping segments (multichannel) can make spoken exceed total.
		pause = 0
	}

	words := c.WordCount()
	var wpm float64
	if total > 0 {
		wpm = float64(words) / (total / 60.0)
	}

	rate := "appropriate"
	switch {
	case wpm < targetWPM*(1-paceBand):
		rate = "too_slow"
	case wpm > targetWPM*(1+paceBand):
		rate = "too_fast"
	}

	return SpeechMetrics{
		TotalWords:           words,
		TotalDurationSeconds: total,
		PauseDurationSeconds: pause,
		WordsPerMinute:       wpm,
		SpeakingRate:         rate,
	}
}

func fillerAnalysis(c transcript.Collection) FillerAnalysis {
	occurrences := map[string]int{}
	count := 0

	for _, seg := range c.Segments() {
		words := strings.Fields(strings.ToLower(seg.Text))
		for i := range words {
			words[i] = strings.Trim(words[i], ".,!?;:\"'()")
		}
		for i, w := range words {
			for _, filler := range fillerSingles {
				if w == filler {
					occurrences[filler]++
					count++
					break
				}
			}
			if w == fillerBigramFirst && i+1 < len(words) && words[i+1] == fillerBigramSecond {
				occurrences["you know"]++
				count++
			}
		}
	}

	totalWords := c.WordCount()
	pct := float64(count) / float64(totalWords) * 100

	grade := "needs_improvement"
	switch {
	case pct <= gradeExcellentMax:
		grade = "excellent"
	case pct <= gradeGoodMax:
		grade = "good"
	case pct <= gradeFairMax:
		grade = "fair"
	}

	if len(occurrences) == 0 {
		occurrences = nil
	}
	return FillerAnalysis{
		FillerCount:      count,
		FillerPercentage: pct,
		Grade:            grade,
		Occurrences:      occurrences,
	}
}

func confidenceMetrics(c transcript.Collection, speech SpeechMetrics, fillers FillerAnalysis) ConfidenceMetrics {
	var sum float64
	var n int
	for _, seg := range c.Segments() {
		if seg.Confidence != nil {
			sum += *seg.Confidence
			n++
		}
	}

	var avg float64
	estimated := n == 0
	if estimated {
		avg = 1 - 2*(fillers.FillerPercentage/100)
		if avg < heuristicFloor {
			avg = heuristicFloor
		}
	} else {
		avg = sum / float64(n)
	}

	energy := "low"
	switch {
	case speech.WordsPerMinute > highEnergy:
		energy = "high"
	case speech.WordsPerMinute > mediumEnergy:
		energy = "moderate"
	}

	return ConfidenceMetrics{
		AverageConfidence: avg,
		Estimated:         estimated,
		EnergyLevel:       energy,
	}
}

// deliveryScore blends the four component scores on the fixed 0-25 scale.
func deliveryScore(speech SpeechMetrics, fillers FillerAnalysis, confidence ConfidenceMetrics) float64 {
	score := scoreScale * (weightPace*paceScore(speech) +
		weightPause*pauseScore(speech) +
		weightFiller*fillerScore(fillers) +
		weightConfidence*confidence.AverageConfidence)
	// Clamp against float drift at the edges.
	if score < 0 {
		return 0
	}
	if score > scoreScale {
		return scoreScale
	}
	return score
}

// paceScore is 1.0 inside the tolerated band and degrades linearly with the
// relative deviation beyond it.
func paceScore(speech SpeechMetrics) float64 {
	deviation := speech.WordsPerMinute/targetWPM - 1
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation <= paceBand {
		return 1.0
	}
	s := 1.0 - (deviation - paceBand)
	if s < 0 {
		return 0
	}
	return s
}

// pauseScore rewards a pause share between 5% and 35% of the session: enough
// to breathe, not enough to stall.
func pauseScore(speech SpeechMetrics) float64 {
	if speech.TotalDurationSeconds == 0 {
		return 0
	}
	ratio := speech.PauseDurationSeconds / speech.TotalDurationSeconds
	switch {
	case ratio < 0.05:
		return 0.6
	case ratio <= 0.35:
		return 1.0
	default:
		s := 1.0 - (ratio - 0.35)
		if s < 0 {
			return 0
		}
		return s
	}
}

func fillerScore(fillers FillerAnalysis) float64 {
	switch fillers.Grade {
	case "excellent":
		return 1.0
	case "good":
		return 0.8
	case "fair":
		return 0.5
	default:
		return 0.2
	}
}

// insights produces the ordered strength, improvement and coaching strings
// from fixed per-metric thresholds. No randomness: same input, same output.
func insights(speech SpeechMetrics, fillers FillerAnalysis, confidence ConfidenceMetrics, ann *transcript.Annotations) (strengths, improvements, coaching []string) {
	// Pace.
	switch speech.SpeakingRate {
	case "appropriate":
		strengths = append(strengths, "Speaking pace is on target.")
	case "too_slow":
		improvements = append(improvements, "Speaking pace is below the target range.")
		coaching = append(coaching, fmt.Sprintf("Aim for about %.0f words per minute; you averaged %.0f.", targetWPM, speech.WordsPerMinute))
	case "too_fast":
		improvements = append(improvements, "Speaking pace is above the target range.")
		coaching = append(coaching, fmt.Sprintf("Slow down toward %.0f words per minute; you averaged %.0f.", targetWPM, speech.WordsPerMinute))
	}

	// Fillers.
	switch fillers.Grade {
	case "excellent", "good":
		strengths = append(strengths, "Filler words are well controlled.")
	case "fair":
		improvements = append(improvements, "Filler words are starting to creep in.")
		coaching = append(coaching, "Replace fillers with a short pause; silence reads as composure.")
	default:
		improvements = append(improvements, fmt.Sprintf("Filler words make up %.1f%% of your speech.", fillers.FillerPercentage))
		coaching = append(coaching, "Record yourself and note every filler; awareness alone cuts usage sharply.")
	}

	// Confidence.
	if confidence.AverageConfidence >= 0.8 {
		strengths = append(strengths, "Delivery sounds confident and assured.")
	} else if confidence.AverageConfidence < 0.6 {
		improvements = append(improvements, "Delivery comes across as hesitant.")
		coaching = append(coaching, "Rehearse the opening lines until they are automatic; early confidence carries through.")
	}

	if confidence.EnergyLevel == "low" {
		coaching = append(coaching, "Raise your energy: vary pitch and emphasize key words.")
	}

	// Provider annotations, when the batch path supplied them.
	if !ann.IsEmpty() {
		negative := 0
		for _, s := range ann.Sentiments {
			if s.Label == "NEGATIVE" {
				negative++
			}
		}
		if len(ann.Sentiments) > 0 && negative*2 > len(ann.Sentiments) {
			improvements = append(improvements, "Overall sentiment skews negative.")
		}
		if len(ann.Chapters) > 1 {
			strengths = append(strengths, "Content has a clear multi-part structure.")
		}
	}

	return strengths, improvements, coaching
}
