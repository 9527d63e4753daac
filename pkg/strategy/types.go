package strategy

import "time"

// StepStatus is the state of a single execution step
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

// Step is one entry of an execution ledger
type Step struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Status      StepStatus  `json:"status"`
	Description string      `json:"description"`
	Payload     interface{} `json:"payload,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// StepFunc receives steps as they are recorded
type StepFunc func(step Step)

// Progress is reported through Callbacks.OnProgress
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// Callbacks are optional, synchronous and fire-and-forget
type Callbacks struct {
	OnStep     StepFunc
	OnThought  func(text string)
	OnProgress func(p Progress)
}

// Thought forwards text to OnThought if set
func (c Callbacks) Thought(text string) {
	if c.OnThought != nil {
		c.OnThought(text)
	}
}

// Report forwards progress to OnProgress if set
func (c Callbacks) Report(current, total int, message string) {
	if c.OnProgress != nil {
		c.OnProgress(Progress{Current: current, Total: total, Message: message})
	}
}

// ExecutionContext is the input of Strategy.Execute
type ExecutionContext struct {
	Query     string                 `json:"query"`
	TaskType  string                 `json:"task_type,omitempty"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Callbacks Callbacks              `json:"-"`
}

// Source is a reference backing a finding
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Tool  string `json:"tool,omitempty"`
}

// SearchSummary condenses a search-like tool result
type SearchSummary struct {
	Query   string `json:"query"`
	Results int    `json:"results"`
	Summary string `json:"summary"`
}

// ExecutionResult is the output of Strategy.Execute
type ExecutionResult struct {
	Success       bool                   `json:"success"`
	Query         string                 `json:"query"`
	Findings      []string               `json:"findings"`
	Sources       []Source               `json:"sources"`
	Synthesis     string                 `json:"synthesis"`
	Confidence    *float64               `json:"confidence,omitempty"`
	Steps         []Step                 `json:"steps"`
	SearchResults []SearchSummary        `json:"search_results,omitempty"`
	Duration      time.Duration          `json:"duration"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// Confidence returns a pointer to v clamped to [0,1]
func Confidence(v float64) *float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return &v
}

// Message is the conversational memory shape used by chat-style engines
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
