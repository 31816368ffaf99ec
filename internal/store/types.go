package store

import "time"

// Document is a crawled page with its processed text.
type Document struct {
	ID           string
	URL          string
	Title        string
	Content      string
	CleanContent string
	Source       string
	Metadata     map[string]any
	TokenCount   int
	CreatedAt    time.Time
	IndexedAt    *time.Time
}

// Posting is one term's occurrence record in one document.
type Posting struct {
	DocumentID string
	Frequency  int
	Positions  []int
}

// CollectionStats is the corpus-level state BM25 scoring needs.
type CollectionStats struct {
	TotalDocuments int
	AvgDocLength   float64
}

// Chunk is an embedded slice of a document.
type Chunk struct {
	DocumentID string
	Index      int
	Text       string
	Embedding  []float32
}

// TermFrequency is an autocomplete vocabulary entry.
type TermFrequency struct {
	Term      string
	Frequency int
}

// Crawl job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobCancelled = "cancelled"
)

// CrawlJob tracks one crawl from submission to completion.
type CrawlJob struct {
	ID              string
	Source          string
	Config          string
	Status          string
	PagesCrawled    int
	DocumentsAdded  int
	Error           string
	CancelRequested bool
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// QueryLog records one served search.
type QueryLog struct {
	ID          string
	Query       string
	SearchType  string
	ResultCount int
	LatencyMS   int64
	CreatedAt   time.Time
}

// ClickEvent records a user clicking a result.
type ClickEvent struct {
	ID         string
	QueryID    string
	DocumentID string
	Position   int
	CreatedAt  time.Time
}

// IndexStats summarizes the index for the stats endpoint.
type IndexStats struct {
	TotalDocuments   int     `json:"totalDocuments"`
	IndexedDocuments int     `json:"indexedDocuments"`
	TotalTerms       int     `json:"totalTerms"`
	TotalChunks      int     `json:"totalChunks"`
	AvgDocLength     float64 `json:"avgDocLength"`
	PendingJobs      int     `json:"pendingJobs"`
	RunningJobs      int     `json:"runningJobs"`
}
