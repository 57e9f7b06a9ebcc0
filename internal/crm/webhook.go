package crm

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"admissionsbot/internal/domain"
)

// NoteEvent is a note added to a lead on the CRM side.
type NoteEvent struct {
	LeadID int64  `json:"lead_id"`
	Text   string `json:"text"`
}

// amoCRM posts note webhooks as nested form keys:
// leads[note][0][note][text]=...&leads[note][0][note][element_id]=123
var noteKey = regexp.MustCompile(`^leads\[note\]\[(\d+)\]\[note\]\[(text|element_id)\]$`)

// ParseNoteWebhook extracts note events from a form-encoded amoCRM webhook
// or from a JSON body ({"lead_id":1,"text":"..."} or a list of them).
func ParseNoteWebhook(contentType string, body []byte) ([]NoteEvent, error) {
	if strings.HasPrefix(strings.TrimSpace(contentType), "application/json") {
		return parseJSONNotes(body)
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse webhook form: %v", domain.ErrValidation, err)
	}

	byIndex := make(map[int]*NoteEvent)
	for key, values := range form {
		m := noteKey.FindStringSubmatch(key)
		if m == nil || len(values) == 0 {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		ev, ok := byIndex[idx]
		if !ok {
			ev = &NoteEvent{}
			byIndex[idx] = ev
		}
		switch m[2] {
		case "text":
			ev.Text = values[0]
		case "element_id":
			id, err := strconv.ParseInt(values[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad element_id %q", domain.ErrValidation, values[0])
			}
			ev.LeadID = id
		}
	}

	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	events := make([]NoteEvent, 0, len(indexes))
	for _, idx := range indexes {
		ev := byIndex[idx]
		if ev.LeadID == 0 || ev.Text == "" {
			continue
		}
		events = append(events, *ev)
	}
	return events, nil
}

func parseJSONNotes(body []byte) ([]NoteEvent, error) {
	trimmed := strings.TrimSpace(string(body))
	var events []NoteEvent
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, fmt.Errorf("%w: decode webhook: %v", domain.ErrValidation, err)
		}
	} else {
		var ev NoteEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("%w: decode webhook: %v", domain.ErrValidation, err)
		}
		events = []NoteEvent{ev}
	}

	out := events[:0]
	for _, ev := range events {
		if ev.LeadID != 0 && ev.Text != "" {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Sign returns the hex MD5 of body followed by secret, as amoCRM computes
// X-Signature.
func Sign(body []byte, secret string) string {
	sum := md5.Sum(append(append([]byte{}, body...), secret...))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares signature with Sign(body, secret), ignoring case.
func VerifySignature(body []byte, secret, signature string) bool {
	expected := Sign(body, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}
