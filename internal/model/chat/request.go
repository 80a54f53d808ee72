package chat

import (
	"time"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
)

// Request is a fully formed inbound chat request. It is built once per
// request and never mutated afterwards.
type Request struct {
	Question    string
	IsEmergency bool
	History     []Turn
	ClientID    string
	Region      string
}

// Response is returned to the client on success.
type Response struct {
	Answer      string         `json:"answer"`
	Severity    severity.Level `json:"severity"`
	IsEmergency bool           `json:"isEmergency"`
	Timestamp   time.Time      `json:"timestamp"`
}

// LogRecord is the persisted trace of one completed exchange.
type LogRecord struct {
	ID            string         `json:"id"`
	Question      string         `json:"question"`
	Answer        string         `json:"answer"`
	Severity      severity.Level `json:"severity"`
	IsEmergency   bool           `json:"isEmergency"`
	ClientID      string         `json:"clientIdentifier"`
	ContextLength int            `json:"contextLength"`
	Region        string         `json:"region,omitempty"`
	Model         string         `json:"model,omitempty"`
	Symptoms      []string       `json:"symptoms,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}
