package models

// Message types.
const (
	MessageTypeText = "text"
	MessageTypePoll = "poll"
)

// Attachment references uploaded bytes owned by the blob storage backend.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Size string `json:"size,omitempty"`
}

// PollOption is a single votable entry.
type PollOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PollData is embedded in messages of type poll. Votes map voter id to
// option id; a re-vote overwrites the prior entry.
type PollData struct {
	Question string            `json:"question"`
	Options  []PollOption      `json:"options"`
	Votes    map[string]string `json:"votes"`
}

// HasOption reports whether optionID exists in the poll.
func (p PollData) HasOption(optionID string) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// Message is a single group message. CreatedAt is Unix milliseconds and is
// the ordering key within a group.
type Message struct {
	ID         string      `json:"id"`
	GroupID    string      `json:"groupId"`
	SenderID   string      `json:"senderId"`
	SenderName string      `json:"senderName"`
	Text       string      `json:"text"`
	CreatedAt  int64       `json:"createdAt"`
	Type       string      `json:"type"`
	IsPinned   bool        `json:"isPinned"`
	Attachment *Attachment `json:"attachment,omitempty"`
	PollData   *PollData   `json:"pollData,omitempty"`
}
