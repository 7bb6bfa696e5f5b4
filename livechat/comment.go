package livechat

import (
	"context"
	"errors"
)

// ElementType discriminates the two kinds of comment content.
type ElementType string

const (
	ElementText  ElementType = "text"
	ElementEmoji ElementType = "emoji"
)

// Element is one formatting run inside a comment: literal text or an emoji
// image reference. Exactly one of Content and URL is set, according to Type.
type Element struct {
	Type    ElementType `json:"type"`
	Content string      `json:"content,omitempty"`
	URL     string      `json:"url,omitempty"`
}

// TextElement returns a text run with the literal content.
func TextElement(content string) Element {
	return Element{Type: ElementText, Content: content}
}

// EmojiElement returns an emoji run pointing at an image URL.
func EmojiElement(url string) Element {
	return Element{Type: ElementEmoji, URL: url}
}

// Comment is one chat message: a non-empty run of elements in source order.
type Comment struct {
	Elements []Element `json:"elements"`
}

// Stats is the derived feed rate reported alongside each accepted batch.
type Stats struct {
	CommentsPerSec float64 `json:"commentsPerSec"`
}

// Emitter is the display capability comments and stats are pushed through.
// Implementations must be safe for concurrent use and must return
// ErrNoConsumer, rather than block, when nothing is attached yet.
type Emitter interface {
	EmitComment(ctx context.Context, c Comment) error
	EmitStats(ctx context.Context, s Stats) error
}

// ErrNoConsumer reports that no display consumer is currently attached. The
// feed keeps running; the event is simply dropped.
var ErrNoConsumer = errors.New("no display consumer attached")
