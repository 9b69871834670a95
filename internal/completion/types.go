package completion

// Model selects which configured model a request runs against.
type Model string

const (
	// ModelPrimary is the higher-quality model used for summaries and search.
	ModelPrimary Model = "primary"
	// ModelFast is the cheaper model used for tag and category suggestion.
	ModelFast Model = "fast"
)

// Format selects the response mode requested from the backend.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Request describes a single completion call. Constructed per call,
// never reused.
type Request struct {
	SystemPrompt string
	UserMessage  string
	Model        Model
	MaxTokens    int
	Temperature  float64
	Format       Format
}

// Usage is the token accounting reported by the backend for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is a successful completion. Produced whole on success, never
// partially filled.
type Result struct {
	Content string
	Usage   Usage
	Model   string
}
