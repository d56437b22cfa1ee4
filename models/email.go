package models

import "time"

// Record is one composed-and-sent message to one recipient
type Record struct {
	ID             string    `json:"id"`
	RecipientEmail string    `json:"email"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	Timestamp      time.Time `json:"timestamp"`
}

// BulkMessage is the payload accepted by the mail service send endpoint
type BulkMessage struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// Selection is what the history sidebar applies back to the composer
type Selection struct {
	Emails  []string `json:"emails"`
	Message *Record  `json:"message,omitempty"`
}
