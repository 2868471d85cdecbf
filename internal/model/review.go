package model

import "sort"

// SentimentStats are aggregate sentiment counts for a set of reviews.
type SentimentStats struct {
	Positive       int     `json:"positive"`
	Neutral        int     `json:"neutral"`
	Negative       int     `json:"negative"`
	TotalReviews   int     `json:"total_reviews"`
	SentimentScore float64 `json:"sentiment_score"`
	AvgCompound    float64 `json:"avg_compound,omitempty"`
}

// Polarised holds positive and negative strings (keywords or snippets).
type Polarised struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

// GroupAnalysis breaks reviews down by user group (gamers, students...).
type GroupAnalysis struct {
	SentimentByGroup map[string]SentimentStats `json:"sentiment_by_group"`
	KeywordsByGroup  map[string]Polarised      `json:"keywords_by_group"`
	SnippetsByGroup  map[string]Polarised      `json:"snippets_by_group"`
}

// ReviewAnalysis is the precomputed sentiment report for one model.
type ReviewAnalysis struct {
	ModelName     string                    `json:"model_name"`
	TotalReviews  int                       `json:"total_reviews"`
	IsDummy       bool                      `json:"is_dummy,omitempty"`
	PlatformStats map[string]SentimentStats `json:"platform_stats"`
	GroupAnalysis GroupAnalysis             `json:"group_analysis"`
}

// SentimentRow is one bar of the per-group sentiment chart.
type SentimentRow struct {
	Group    string
	Positive int
	Neutral  int
	Negative int
}

// SentimentRows flattens the per-group sentiment, ordered by group name.
func (r *ReviewAnalysis) SentimentRows() []SentimentRow {
	rows := make([]SentimentRow, 0, len(r.GroupAnalysis.SentimentByGroup))
	for group, s := range r.GroupAnalysis.SentimentByGroup {
		rows = append(rows, SentimentRow{
			Group:    group,
			Positive: s.Positive,
			Neutral:  s.Neutral,
			Negative: s.Negative,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Group < rows[j].Group })
	return rows
}
