package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AdvisoryEvent records a single advisory request.
type AdvisoryEvent struct {
	Timestamp    string  `json:"ts"`
	MessageID    string  `json:"message"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model,omitempty"`
	Language     string  `json:"lang"`
	HasImage     bool    `json:"image,omitempty"`
	InputTokens  int     `json:"in"`
	OutputTokens int     `json:"out"`
	LatencyMS    int64   `json:"latency_ms"`
	Outcome      string  `json:"outcome"` // "resolved", "config_error" or "failed"
	CostUSD      float64 `json:"cost"`
}

// Tracker appends advisory events to a JSONL file.
type Tracker struct {
	filePath string
	mu       sync.Mutex
}

// NewTracker creates a tracker that writes to workspace/metrics/advisories.jsonl.
func NewTracker(workspace string) *Tracker {
	dir := filepath.Join(workspace, "metrics")
	os.MkdirAll(dir, 0755)
	return &Tracker{
		filePath: filepath.Join(dir, "advisories.jsonl"),
	}
}

// Path returns the JSONL file location.
func (t *Tracker) Path() string {
	return t.filePath
}

// Record appends an event. Write failures are dropped; metrics never
// interfere with a chat turn.
func (t *Tracker) Record(event AdvisoryEvent) {
	if t == nil {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().Format(time.RFC3339)
	}
	event.CostUSD = calculateCost(event.Model, event.InputTokens, event.OutputTokens)

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	f.Write(data)
	f.Write([]byte("\n"))
}

// Model pricing per million tokens (input, output).
type modelPricing struct {
	inputPerM  float64
	outputPerM float64
}

var pricing = map[string]modelPricing{
	"claude-sonnet-4-5-20250929": {3.0, 15.0},
	"claude-haiku-4-5-20251001":  {1.0, 5.0},
	"gpt-4o":                     {2.5, 10.0},
	"gpt-4o-mini":                {0.15, 0.6},
	"mock":                       {0, 0},
}

func calculateCost(model string, input, output int) float64 {
	p, ok := pricing[model]
	if !ok {
		// Default to Sonnet pricing
		p = modelPricing{3.0, 15.0}
	}
	return float64(input)*p.inputPerM/1e6 + float64(output)*p.outputPerM/1e6
}
