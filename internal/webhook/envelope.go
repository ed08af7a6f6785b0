package webhook

import "time"

// Envelope is the canonical JSON body POSTed to an org's webhook URL for
// every inbound message (spec §4.F).
type Envelope struct {
	Type      string       `json:"type"`
	Timestamp string       `json:"timestamp"`
	Data      EnvelopeData `json:"data"`
}

type EnvelopeData struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Message        string `json:"message"`
	MessageID      string `json:"messageId"`
	MessageType    string `json:"messageType"`
	IsGroupMessage bool   `json:"isGroupMessage"`
	GroupJID       string `json:"groupJid,omitempty"`
}

func newEnvelope(from, to, message, messageID, messageType string, isGroup bool, groupJID string, at time.Time) Envelope {
	return Envelope{
		Type:      "whatsapp_message",
		Timestamp: at.UTC().Format(time.RFC3339),
		Data: EnvelopeData{
			From:           ToE164(from),
			To:             ToE164(to),
			Message:        message,
			MessageID:      messageID,
			MessageType:    messageType,
			IsGroupMessage: isGroup,
			GroupJID:       groupJID,
		},
	}
}
