package store

// WithRepo filters by the "repo" column.
func WithRepo(repo string) Option {
	return WithCondition("repo", repo)
}

// WithIssueNumber filters by the "issue_number" column.
func WithIssueNumber(n int) Option {
	return WithCondition("issue_number", n)
}

// WithIssueNumberIn filters by the "issue_number" column using IN.
func WithIssueNumberIn(numbers []int) Option {
	return WithConditionIn("issue_number", numbers)
}

// WithState filters by the "state" column.
func WithState(state string) Option {
	return WithCondition("state", state)
}
