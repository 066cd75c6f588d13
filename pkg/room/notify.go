package room

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/wI2L/jsondiff"
)

// Update notification types
const (
	EventUpdateApplied  = "update_applied"
	EventUpdateReverted = "update_reverted"
)

// UpdateEvent is sent to subscribers whenever the content of the document
// changes through an accepted proposal or a revert.
type UpdateEvent struct {
	Type        string         `json:"type"`
	DocumentID  string         `json:"document_id"`
	RecordID    string         `json:"record_id"`
	Explanation string         `json:"explanation,omitempty"`
	Content     string         `json:"content"`
	Patch       jsondiff.Patch `json:"patch,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}

type contentLines struct {
	Lines []string `json:"lines"`
}

func splitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	return strings.Split(content, "\n")
}

// LineDiff describes the change from prev to next as a JSON Patch over the
// document's lines.
func LineDiff(prev, next string) (jsondiff.Patch, error) {
	return jsondiff.Compare(
		contentLines{Lines: splitLines(prev)},
		contentLines{Lines: splitLines(next)},
	)
}

// NotifyUpdate tells subscribers that the content went from prev to next.
func (r *Room) NotifyUpdate(event, recordID, explanation, prev, next string) {
	patch, err := LineDiff(prev, next)
	if err != nil {
		log.Printf("Failed to diff update %s for room %s: %v", recordID, r.ID, err)
	}
	data, err := json.Marshal(UpdateEvent{
		Type:        event,
		DocumentID:  r.ID,
		RecordID:    recordID,
		Explanation: explanation,
		Content:     next,
		Patch:       patch,
		Timestamp:   time.Now().UnixNano(),
	})
	if err != nil {
		log.Printf("Failed to encode update %s for room %s: %v", recordID, r.ID, err)
		return
	}
	r.publish(data)
}
