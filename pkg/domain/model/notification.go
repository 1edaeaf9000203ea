package model

// NotificationRecord is posted to the evaluation callback when a round has
// been published. Nonce is echoed back so the receiver can drop duplicates.
type NotificationRecord struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     Round  `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// Delivery describes a successful callback delivery
type Delivery struct {
	StatusCode int
	Attempts   int
	Body       []byte
}
