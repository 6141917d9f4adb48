package history

import "github.com/manash/splendid/pkg/models"

// Comparison links a generated output to the input image that produced it.
type Comparison struct {
	Before    models.Message
	After     models.Message
	BeforeURL string
	AfterURL  string
}

// Pair finds the "before" counterpart of the assistant message at index i.
// An explicit source message id wins; otherwise the message immediately
// preceding i is used. The counterpart must be a user message with input
// images.
func Pair(msgs []models.Message, i int) (Comparison, bool) {
	if i < 0 || i >= len(msgs) {
		return Comparison{}, false
	}
	after := msgs[i]
	if after.Role != models.RoleAssistant || !after.HasImages() {
		return Comparison{}, false
	}

	var before *models.Message
	if after.SourceMessageID != "" {
		for j := range msgs {
			if msgs[j].ID == after.SourceMessageID {
				before = &msgs[j]
				break
			}
		}
	} else if i > 0 {
		before = &msgs[i-1]
	}

	if before == nil || before.Role != models.RoleUser || !before.HasImages() {
		return Comparison{}, false
	}

	return Comparison{
		Before:    *before,
		After:     after,
		BeforeURL: before.ImageURLs[0],
		AfterURL:  after.ImageURLs[0],
	}, true
}

type EntryKind int

const (
	EntryText EntryKind = iota
	EntryMedia
	EntryComparison
)

func (k EntryKind) String() string {
	switch k {
	case EntryMedia:
		return "media"
	case EntryComparison:
		return "comparison"
	default:
		return "text"
	}
}

// Entry is one rendered row of a session history.
type Entry struct {
	Kind       EntryKind
	Message    models.Message
	Comparison *Comparison
}

func Entries(msgs []models.Message) []Entry {
	entries := make([]Entry, 0, len(msgs))
	for i, m := range msgs {
		e := Entry{Kind: EntryText, Message: m}
		if cmp, ok := Pair(msgs, i); ok {
			e.Kind = EntryComparison
			e.Comparison = &cmp
		} else if m.HasMedia() {
			e.Kind = EntryMedia
		}
		entries = append(entries, e)
	}
	return entries
}
