package model

import (
	"regexp"
	"strings"

	"github.com/secmon-lab/warden/pkg/domain/types"
)

var (
	mentionPattern = regexp.MustCompile(`<@[A-Za-z0-9]+>`)
	urlPattern     = regexp.MustCompile(`<?https?://[^\s>]+>?`)
)

// Message is the platform-neutral snapshot of a chat message consumed by the
// pressure and filter engines.
type Message struct {
	ID      types.MessageID
	Channel types.ChannelID
	Author  types.UserID
	Content string

	// Attachments counts uploaded files, rich embeds and stickers
	Attachments int

	// HasPreview reports whether the platform rendered a link preview for
	// the message
	HasPreview bool

	// SuppressEmbeds reports whether the author marked links as
	// no-preview
	SuppressEmbeds bool
}

// Mentions counts user mentions in the content
func (x *Message) Mentions() int {
	return len(mentionPattern.FindAllString(x.Content, -1))
}

// URLs counts links in the content
func (x *Message) URLs() int {
	return len(urlPattern.FindAllString(x.Content, -1))
}

// Newlines counts line breaks in the content
func (x *Message) Newlines() int {
	return strings.Count(x.Content, "\n")
}
