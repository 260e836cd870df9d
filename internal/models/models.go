package models

// Task describes a single rewarded action listed on the board.
type Task struct {
	ID          int64    `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	ImageURL    string   `json:"image_url" yaml:"image_url"`
	Points      int64    `json:"points" yaml:"points"`
	Link        string   `json:"link" yaml:"link"`
	Conditions  []string `json:"conditions" yaml:"conditions"`
	Section     string   `json:"section" yaml:"section"`
	SortOrder   int64    `json:"sort_order" yaml:"sort_order"`
}

// User is the account row the point balance lives on.
// CompletedTasks may contain duplicates.
type User struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	Points         int64   `json:"points"`
	CompletedTasks []int64 `json:"completed_tasks"`
}

// RewardTier pairs a cash amount with the points it costs.
type RewardTier struct {
	Amount int64 `json:"amount"`
	Points int64 `json:"points"`
}

// Section is one titled group of tasks on the board.
type Section struct {
	Name  string `json:"name"`
	Tasks []Task `json:"tasks"`
}
