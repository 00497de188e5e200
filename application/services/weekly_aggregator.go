package services

import (
	"context"

	"diary-backend/application/ports"
	"diary-backend/domain/core/valueobjects"
)

// WeeklyAggregator builds the seven day score vector from statistics rows
type WeeklyAggregator struct {
	analyses ports.AnalysisRepository
}

func NewWeeklyAggregator(analyses ports.AnalysisRepository) *WeeklyAggregator {
	return &WeeklyAggregator{analyses: analyses}
}

// WeekVector places every score dated in [start, end] into its weekday slot.
// Days without a row stay absent; a repeated date keeps the last row read.
func (a *WeeklyAggregator) WeekVector(ctx context.Context, userID int64, start, end valueobjects.DiaryDate) (valueobjects.WeeklyScoreVector, error) {
	var week valueobjects.WeeklyScoreVector

	rows, err := a.analyses.ReadWeekScores(ctx, userID, start, end)
	if err != nil {
		return week, err
	}
	for _, row := range rows {
		week.Set(row.Date, row.Score)
	}
	return week, nil
}
