package audit

import (
	"encoding/json"
	"log"
	"time"
)

// AuditEvent is one structured audit line
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	EntryID   int64     `json:"entry_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	GameName  string    `json:"game_name,omitempty"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

type AuditLogger struct {
	now func() time.Time
}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{now: time.Now}
}

// LogMutation records a committed ledger entry change
func (a *AuditLogger) LogMutation(action string, entryID int64, username, actor, gameName string, amountFinal, coinDelta float64) {
	a.log(AuditEvent{
		EventType: "LEDGER_" + action,
		EntryID:   entryID,
		Username:  username,
		Actor:     actor,
		GameName:  gameName,
		Amount:    amountFinal,
		Status:    "SUCCESS",
		Details:   map[string]float64{"coin_delta": coinDelta},
	})
}

// LogSkipped records a side effect that was intentionally dropped
func (a *AuditLogger) LogSkipped(operation string, entryID int64, gameName string, amount float64, reason string) {
	a.log(AuditEvent{
		EventType: operation,
		EntryID:   entryID,
		GameName:  gameName,
		Amount:    amount,
		Status:    "SKIPPED",
		Details:   map[string]string{"reason": reason},
	})
}

// LogError records a failure together with the operation it interrupted
func (a *AuditLogger) LogError(operation string, entryID int64, username string, err error) {
	a.log(AuditEvent{
		EventType: "ERROR",
		EntryID:   entryID,
		Username:  username,
		Status:    "FAILED",
		Details: map[string]string{
			"operation": operation,
			"error":     err.Error(),
		},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	if a == nil {
		return
	}
	event.Timestamp = a.now()
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
