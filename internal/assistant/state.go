// Package assistant runs one chat turn of the moment-search assistant:
// stream a completion, dispatch its function calls, and record the
// conversation state.
package assistant

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/anatolykoptev/go_moments/internal/engine"
	"github.com/anatolykoptev/go_moments/internal/ui"
)

// Role of a stored message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleFunction  Role = "function"
)

// Function names exchanged with the model.
const (
	FnProvideCaptions = "provide_video_captions_to_ai"
	FnShowMoments     = "show_video_moments"
	// FnBestMatches names the function message that stores presented moments.
	FnBestMatches = "videos_best_matches"
)

// Message is one stored conversation entry.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// AIState is the full conversation of one chat.
type AIState struct {
	ChatID   string    `json:"chatId"`
	Messages []Message `json:"messages"`
}

// NewState starts an empty conversation. An empty chatID gets a fresh one.
func NewState(chatID string) AIState {
	if chatID == "" {
		chatID = newID()
	}
	return AIState{ChatID: chatID, Messages: []Message{}}
}

func newID() string { return uuid.NewString() }

func (s *AIState) append(m Message) {
	if m.ID == "" {
		m.ID = newID()
	}
	s.Messages = append(s.Messages, m)
}

// optionRe matches a line holding one bracketed suggestion, e.g. "[Best knockouts]."
var optionRe = regexp.MustCompile(`^\s*(?:[-*]\s*|\d+[.)]\s*)?\[([^\[\]]+)\]\s*[.,;]?\s*$`)

// ParseOptions returns the bracketed search-term suggestions in text, in
// order, without duplicates.
func ParseOptions(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		m := optionRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		opt := engine.NormTerm(m[1])
		key := strings.ToLower(opt)
		if opt == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, opt)
	}
	return out
}

// UIFromState rebuilds display fragments from stored messages. System
// messages are hidden; fragment IDs are "<chatId>-<index>" over the visible
// messages.
func UIFromState(state AIState) []ui.Fragment {
	frags := make([]ui.Fragment, 0, len(state.Messages))
	idx := 0
	for _, m := range state.Messages {
		if m.Role == RoleSystem {
			continue
		}
		id := state.ChatID + "-" + strconv.Itoa(idx)
		idx++

		switch m.Role {
		case RoleUser:
			frags = append(frags, ui.Fragment{ID: id, Kind: ui.KindUser, Text: m.Content, Done: true})
		case RoleFunction:
			if m.Name != FnBestMatches {
				continue
			}
			var videos []engine.VideoData
			if err := json.Unmarshal([]byte(m.Content), &videos); err != nil {
				continue
			}
			frags = append(frags, ui.Fragment{ID: id, Kind: ui.KindVideos, Videos: videos, Done: true})
		default:
			frags = append(frags, ui.Fragment{
				ID:      id,
				Kind:    ui.KindText,
				Text:    m.Content,
				Options: ParseOptions(m.Content),
				Done:    true,
			})
		}
	}
	return frags
}
