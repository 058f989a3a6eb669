// Package ui renders chat display fragments as HTML and Markdown.
package ui

import "github.com/anatolykoptev/go_moments/internal/engine"

// Kind selects how a fragment is displayed.
type Kind string

const (
	KindSpinner Kind = "spinner"
	KindUser    Kind = "user"
	KindText    Kind = "text"
	KindCard    Kind = "card"
	KindVideos  Kind = "videos"
)

// Fragment is one piece of streamed or restored chat display. A fragment with
// the same ID replaces the previous one; Done marks the last update.
type Fragment struct {
	ID      string             `json:"id"`
	Kind    Kind               `json:"kind"`
	Text    string             `json:"text,omitempty"`
	Options []string           `json:"options,omitempty"`
	Videos  []engine.VideoData `json:"videos,omitempty"`
	Done    bool               `json:"done"`
}
