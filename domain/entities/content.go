package entities

// NewsItem is one headline from a news feed, already filtered and truncated
// by the adapter that produced it.
type NewsItem struct {
	Title    string `json:"title"`
	Time     string `json:"time"`
	Source   string `json:"source"`
	Category string `json:"category"`
	Content  string `json:"content"`
}

// Paper is one research paper entry from a preprint feed.
type Paper struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Authors   []string `json:"authors"`
	Published string   `json:"published"`
}
