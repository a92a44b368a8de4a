// Package types holds the plain data model shared by the pipeline stages.
// Keeping these here lets budget, prompt, llm, and response stay free of
// imports on each other.
package types

// BlockRole describes where a context block sits in the assembled prompt.
type BlockRole string

const (
	RoleSystem     BlockRole = "system"
	RoleContextDoc BlockRole = "context-doc"
	RoleUserTask   BlockRole = "user-task"
)

// Priority orders optional context blocks. Higher values are included first.
type Priority int

const (
	PriorityRequired  Priority = 100
	PriorityPreferred Priority = 50
	PriorityOptional  Priority = 10
)

// ContextBlock is a unit of text considered for inclusion in a prompt.
// Blocks are immutable once created; the budgeter copies before truncating.
type ContextBlock struct {
	ID              string
	Role            BlockRole
	Content         string
	EstimatedTokens int // zero means "estimate from Content"
	Priority        Priority
	SourceTag       string
}

// Selection is the budgeter's output: the blocks that made the cut, in
// order, plus bookkeeping for observability.
type Selection struct {
	Blocks       []ContextBlock
	TotalTokens  int
	SkippedIDs   []string
	TruncatedIDs []string

	// SecretWarnings names credential-looking patterns spotted in block
	// content. Advisory only; nothing is dropped because of these.
	SecretWarnings []string
}

// Message is a role-tagged chat message, the prompt builder's output.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption as returned by the endpoint.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ErrorKind classifies an invocation failure. Empty means no error.
type ErrorKind string

const (
	ErrKindNone            ErrorKind = ""
	ErrKindBudgetExceeded  ErrorKind = "budget_exceeded"
	ErrKindNetwork         ErrorKind = "network_error"
	ErrKindTimeout         ErrorKind = "timeout"
	ErrKindServer          ErrorKind = "server_error"
	ErrKindClient          ErrorKind = "client_error"
	ErrKindInvalidResponse ErrorKind = "invalid_response"
	ErrKindRefusal         ErrorKind = "model_refusal"
)

// Retryable reports whether a failure of this kind is eligible for retry.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindNetwork, ErrKindTimeout, ErrKindServer:
		return true
	}
	return false
}

// LLMResponse is the invocation client's result. Success is false when the
// call failed after the retry policy ran its course; callers always get a
// value, never a panic.
type LLMResponse struct {
	Content      string
	Model        string
	Usage        Usage
	LatencyMs    int64
	RetryCount   int
	Success      bool
	ErrorKind    ErrorKind
	ErrorMessage string
}

// ValidationResult gates whether generated text may be trusted by a caller.
type ValidationResult struct {
	Valid             bool
	MissingSections   []string
	ExtractedSections map[string]string
}
