package entities

import (
	"strings"
	"time"

	"diary-backend/domain/core/valueobjects"
)

// AnalysisState is the position of an entry in the analysis lifecycle
type AnalysisState int

const (
	NoEntry AnalysisState = iota
	EntryNoAnalysis
	EntryPartialAnalysis
	EntryFullAnalysis
)

func (s AnalysisState) String() string {
	switch s {
	case NoEntry:
		return "no_entry"
	case EntryNoAnalysis:
		return "entry_no_analysis"
	case EntryPartialAnalysis:
		return "entry_partial_analysis"
	case EntryFullAnalysis:
		return "entry_full_analysis"
	default:
		return "unknown"
	}
}

// NeedsAnalysis is the single transition rule of the orchestrator
func (s AnalysisState) NeedsAnalysis() bool {
	return s != EntryFullAnalysis
}

// AnalysisRecord holds the provider output attached to exactly one entry
type AnalysisRecord struct {
	EntryID    int64
	Summary    string
	Sentiment  string
	Advice     string
	Score      valueobjects.Score
	AnalyzedAt time.Time
}

// Complete reports whether every derived text field is present
func (r *AnalysisRecord) Complete() bool {
	return r != nil &&
		strings.TrimSpace(r.Summary) != "" &&
		strings.TrimSpace(r.Sentiment) != "" &&
		strings.TrimSpace(r.Advice) != ""
}

// StateOf classifies an entry and its (possibly nil) record
func StateOf(entry *Entry, record *AnalysisRecord) AnalysisState {
	switch {
	case entry == nil:
		return NoEntry
	case record == nil:
		return EntryNoAnalysis
	case record.Complete():
		return EntryFullAnalysis
	case record.Summary == "" && record.Sentiment == "" && record.Advice == "":
		return EntryNoAnalysis
	default:
		return EntryPartialAnalysis
	}
}

// AnalysisResult is the shape returned by the advice operation. Every
// field is nullable; EmptyAnalysisResult is the not-found and fail-soft shape.
type AnalysisResult struct {
	Date         *valueobjects.DiaryDate        `json:"date"`
	Sentiment    *string                        `json:"emotion_analysis"`
	Summary      *string                        `json:"summary"`
	Advice       *string                        `json:"advice"`
	Score        valueobjects.Score             `json:"total_score"`
	WeeklyScores valueobjects.WeeklyScoreVector `json:"total_scores"`
}

// EmptyAnalysisResult returns the all-absent result with seven empty slots
func EmptyAnalysisResult() AnalysisResult {
	return AnalysisResult{}
}

// IsEmpty reports whether the result carries no entry
func (r AnalysisResult) IsEmpty() bool {
	return r.Date == nil
}

// NewAnalysisResult assembles the result for an analyzed entry
func NewAnalysisResult(entry *Entry, record *AnalysisRecord, week valueobjects.WeeklyScoreVector) AnalysisResult {
	date := entry.Date
	return AnalysisResult{
		Date:         &date,
		Sentiment:    nullable(record.Sentiment),
		Summary:      nullable(record.Summary),
		Advice:       nullable(record.Advice),
		Score:        record.Score,
		WeeklyScores: week,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// DailyScore is one statistics row
type DailyScore struct {
	Date  valueobjects.DiaryDate
	Score valueobjects.Score
}
