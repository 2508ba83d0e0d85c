package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/secmon-lab/warden/pkg/domain/types"
	"github.com/secmon-lab/warden/pkg/utils/logging"
)

// Sender posts messages to a channel. Satisfied by Sink and by test fakes.
type Sender interface {
	SendMessage(ctx context.Context, channel types.ChannelID, content string) error
}

// ModLog posts moderation notices to the configured log channel. When no
// channel is configured, notices fall back to the process logger so nothing
// is lost silently.
type ModLog struct {
	sender  Sender
	channel types.ChannelID
}

func NewModLog(sender Sender, channel types.ChannelID) *ModLog {
	return &ModLog{
		sender:  sender,
		channel: channel,
	}
}

// Post sends a titled notice with optional detail lines
func (m *ModLog) Post(ctx context.Context, title string, details ...string) {
	var sb strings.Builder
	sb.WriteString(title)
	for _, d := range details {
		sb.WriteString("\n• ")
		sb.WriteString(d)
	}
	content := sb.String()

	if m.channel == "" {
		logging.From(ctx).Warn("mod log channel not configured, dropping to process log", "notice", content)
		return
	}

	if err := m.sender.SendMessage(ctx, m.channel, content); err != nil {
		logging.From(ctx).Error("failed to post mod log notice", "error", err.Error(), "notice", content)
	}
}

// Postf is Post with a formatted title
func (m *ModLog) Postf(ctx context.Context, format string, args ...any) {
	m.Post(ctx, fmt.Sprintf(format, args...))
}
