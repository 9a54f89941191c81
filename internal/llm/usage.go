package llm

// UsageStats accumulates token and cost totals across one run. The stats
// are owned by the run, reset at run start, and read once for the final
// report; they never influence control flow.
type UsageStats struct {
	Requests         int
	PromptTokens     int64
	CompletionTokens int64
	Cost             float64
}

// Add folds one request's usage into the totals.
func (s *UsageStats) Add(u Usage) {
	s.Requests++
	s.PromptTokens += int64(u.PromptTokens)
	s.CompletionTokens += int64(u.CompletionTokens)
	s.Cost += u.Cost
}

// TotalTokens returns prompt plus completion tokens.
func (s *UsageStats) TotalTokens() int64 {
	return s.PromptTokens + s.CompletionTokens
}

// Reset zeroes the stats at the start of a run.
func (s *UsageStats) Reset() {
	*s = UsageStats{}
}
