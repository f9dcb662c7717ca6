package store

// IngestStatus tracks the ingestion worker's progress on an article.
type IngestStatus string

const (
	IngestNone        IngestStatus = "none"
	IngestQueued      IngestStatus = "queued"
	IngestDownloading IngestStatus = "downloading"
	IngestDone        IngestStatus = "done"
	IngestFailed      IngestStatus = "failed"
)

// User is an API key holder allowed to submit videos.
type User struct {
	ID              int64
	Name            string
	APIToken        string
	CanUseExtension bool
}

// Category is a node of the category forest.
type Category struct {
	ID        int64  `json:"id"`
	UserID    *int64 `json:"user_id,omitempty"`
	ParentID  *int64 `json:"parent_id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Sort      int    `json:"sort"`
	Published bool   `json:"is_published"`
}

// Article is a blog post created from a video submission.
type Article struct {
	ID           int64
	UserID       int64
	Title        string
	Slug         string
	Content      string
	VideoID      string
	Attachments  []string
	Tags         []string
	CategoryIDs  []int64
	Published    bool
	IngestStatus IngestStatus
	CreatedAt    string
	UpdatedAt    string
}

// Notification is a message for a user, written by background work.
type Notification struct {
	ID        int64
	UserID    int64
	Level     string
	Title     string
	Body      string
	CreatedAt string
}
