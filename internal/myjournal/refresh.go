package myjournal

// RefreshStatus summarizes how a refresh run went as a whole.
type RefreshStatus string

const (
	RefreshStatusSuccess RefreshStatus = "success"
	RefreshStatusPartial RefreshStatus = "partial"
	RefreshStatusFailed  RefreshStatus = "failed"
)

// RefreshReport is what a user's refresh run hands back.
type RefreshReport struct {
	Status           RefreshStatus `json:"status"`
	UserID           int64         `json:"user_id"`
	NewArticlesFound int           `json:"new_articles_found"`
	FailedJournals   int           `json:"failed_journals"`
}
