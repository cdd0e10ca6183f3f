package research

import (
	"fmt"
	"time"
)

// Role is a stage-specific purpose mapped to a model.
type Role string

const (
	RolePlanning   Role = "planning"
	RoleExtraction Role = "extraction"
	RoleAnalysis   Role = "analysis"
	RoleReport     Role = "report"
)

// Roles returns every role in pipeline order.
func Roles() []Role {
	return []Role{RolePlanning, RoleExtraction, RoleAnalysis, RoleReport}
}

// RoleModels maps each role to a provider model identifier.
type RoleModels struct {
	Planning   string `yaml:"planning" json:"planning"`
	Extraction string `yaml:"extraction" json:"extraction"`
	Analysis   string `yaml:"analysis" json:"analysis"`
	Report     string `yaml:"report" json:"report"`
}

// Model returns the model identifier configured for role, or "" for an unknown role.
func (m RoleModels) Model(role Role) string {
	switch role {
	case RolePlanning:
		return m.Planning
	case RoleExtraction:
		return m.Extraction
	case RoleAnalysis:
		return m.Analysis
	case RoleReport:
		return m.Report
	default:
		return ""
	}
}

// WithDefaults returns m with every empty role taken from d.
func (m RoleModels) WithDefaults(d RoleModels) RoleModels {
	if m.Planning == "" {
		m.Planning = d.Planning
	}
	if m.Extraction == "" {
		m.Extraction = d.Extraction
	}
	if m.Analysis == "" {
		m.Analysis = d.Analysis
	}
	if m.Report == "" {
		m.Report = d.Report
	}
	return m
}

// Config holds the bounds of a research run. It is passed by value and never
// modified after the engine is constructed.
type Config struct {
	MaxIterations    int
	MaxSearchResults int
	MaxContentChars  int
	MaxRetryAttempts int
	RetryDelay       time.Duration
	Models           RoleModels
}

const (
	DefaultMaxIterations    = 3
	DefaultMaxSearchResults = 5
	DefaultMaxContentChars  = 20000
	DefaultMaxRetryAttempts = 3
	DefaultRetryDelay       = 1000 * time.Millisecond
)

// DefaultModels are OpenRouter model ids, one per role.
var DefaultModels = RoleModels{
	Planning:   "nvidia/llama-3.1-nemotron-ultra-253b-v1:free",
	Extraction: "nousresearch/deephermes-3-mistral-24b-preview:free",
	Analysis:   "deepseek/deepseek-r1:free",
	Report:     "qwen/qwen2.5-vl-32b-instruct:free",
}

func DefaultConfig() Config {
	return Config{
		MaxIterations:    DefaultMaxIterations,
		MaxSearchResults: DefaultMaxSearchResults,
		MaxContentChars:  DefaultMaxContentChars,
		MaxRetryAttempts: DefaultMaxRetryAttempts,
		RetryDelay:       DefaultRetryDelay,
		Models:           DefaultModels,
	}
}

// Validate reports the first invalid bound or missing model.
func (c Config) Validate() error {
	switch {
	case c.MaxIterations < 1:
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	case c.MaxSearchResults < 1:
		return fmt.Errorf("max search results must be positive, got %d", c.MaxSearchResults)
	case c.MaxContentChars < 1:
		return fmt.Errorf("max content chars must be positive, got %d", c.MaxContentChars)
	case c.MaxRetryAttempts < 1:
		return fmt.Errorf("max retry attempts must be positive, got %d", c.MaxRetryAttempts)
	case c.RetryDelay < 0:
		return fmt.Errorf("retry delay must not be negative, got %s", c.RetryDelay)
	}
	for _, role := range Roles() {
		if c.Models.Model(role) == "" {
			return fmt.Errorf("no model configured for role %s", role)
		}
	}
	return nil
}

// Topic is the immutable input of a research run.
type Topic struct {
	Text      string   `json:"topic"`
	Questions []string `json:"questions,omitempty"`
	Answers   []string `json:"answers,omitempty"`
}

// SearchResult represents a single search result
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ExtractedContent is the budgeted text of one source. Text and Condensed never
// exceed the configured MaxContentChars.
type ExtractedContent struct {
	SourceURL string `json:"source_url"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Condensed string `json:"condensed,omitempty"`
}

// Body returns the condensed text when present, the raw text otherwise.
func (c ExtractedContent) Body() string {
	if c.Condensed != "" {
		return c.Condensed
	}
	return c.Text
}

// Finding is one synthesized unit of evidence.
type Finding struct {
	Summary string   `json:"summary"`
	Sources []string `json:"sources"`
}

// State is a step of the iteration state machine.
type State string

const (
	StateInit       State = "init"
	StatePlanning   State = "planning"
	StateSearching  State = "searching"
	StateExtracting State = "extracting"
	StateAnalyzing  State = "analyzing"
	StateDone       State = "done"
	StateReported   State = "reported"
)

// IterationState tracks the progress of the research
type IterationState struct {
	RunID     string    `json:"run_id"`
	Topic     string    `json:"topic"`
	Iteration int       `json:"iteration"`
	State     State     `json:"state"`
	Query     string    `json:"query,omitempty"`
	Findings  []Finding `json:"findings"`
	Done      bool      `json:"done"`
}

func (s IterationState) snapshot() IterationState {
	cp := s
	cp.Findings = append([]Finding(nil), s.Findings...)
	return cp
}

// Report is the result of a completed run.
type Report struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	Markdown     string    `json:"report"`
	Findings     []Finding `json:"findings"`
	Iterations   int       `json:"iterations"`
	StoppedEarly bool      `json:"stopped_early"`
}
