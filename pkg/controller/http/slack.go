package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"github.com/secmon-lab/warden/pkg/usecase"
	"github.com/secmon-lab/warden/pkg/utils/async"
	"github.com/secmon-lab/warden/pkg/utils/errutil"
	"github.com/secmon-lab/warden/pkg/utils/logging"
	"github.com/secmon-lab/warden/pkg/utils/safe"
	"github.com/slack-go/slack/slackevents"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const slackBodyKey contextKey = "slack_body"

// verifySlackSignature verifies the Slack request signature
// This is a pure function that can be used independently for testing
func verifySlackSignature(signingSecret, timestamp, signature string, body []byte) error {
	if timestamp == "" {
		return goerr.New("missing timestamp")
	}

	if signature == "" {
		return goerr.New("missing signature")
	}

	// Check timestamp to prevent replay attacks (within 5 minutes)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return goerr.Wrap(err, "invalid timestamp")
	}

	now := time.Now().Unix()
	if now-ts > 60*5 {
		return goerr.New("timestamp too old", goerr.V("timestamp", timestamp), goerr.V("now", now))
	}

	baseString := fmt.Sprintf("v0:%s:%s", timestamp, body)
	mac := hmac.New(sha256.New, []byte(signingSecret))
	if _, err := mac.Write([]byte(baseString)); err != nil {
		return goerr.Wrap(err, "failed to compute HMAC")
	}
	expectedSignature := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
		return goerr.New("signature mismatch")
	}

	return nil
}

// SlackSignatureMiddleware creates a middleware that verifies Slack request signatures
func SlackSignatureMiddleware(signingSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(r.Body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}
			defer func() {
				if err := r.Body.Close(); err != nil {
					logging.From(ctx).Error("failed to close request body", "error", err)
				}
			}()

			timestamp := r.Header.Get("X-Slack-Request-Timestamp")
			signature := r.Header.Get("X-Slack-Signature")

			if err := verifySlackSignature(signingSecret, timestamp, signature, body); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "slack signature verification failed"), http.StatusUnauthorized)
				return
			}

			// Store body in context for later use and restore it to the request
			ctx = context.WithValue(ctx, slackBodyKey, body)
			r.Body = io.NopCloser(bytes.NewBuffer(body))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserNameResolver resolves a platform user ID to a display name
type UserNameResolver interface {
	UserName(ctx context.Context, user types.UserID) (string, error)
}

// SlackWebhookHandler handles Slack Events API webhook requests and routes
// callback events into the moderation engines
type SlackWebhookHandler struct {
	events *usecase.EventUseCase
	names  UserNameResolver
}

func NewSlackWebhookHandler(events *usecase.EventUseCase, names UserNameResolver) *SlackWebhookHandler {
	return &SlackWebhookHandler{
		events: events,
		names:  names,
	}
}

// ServeHTTP handles Slack webhook requests
func (h *SlackWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Read body (already verified by middleware)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}

	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slack event"), http.StatusBadRequest)
		return
	}

	switch eventsAPIEvent.Type {
	case slackevents.URLVerification:
		var resp *slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to unmarshal challenge"), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		safe.Write(ctx, w, []byte(resp.Challenge))
		return

	case slackevents.CallbackEvent:
		// Return 200 immediately to satisfy Slack's 3-second timeout requirement
		w.WriteHeader(http.StatusOK)

		async.Dispatch(ctx, func(ctx context.Context) error {
			return h.handleCallback(ctx, &eventsAPIEvent)
		})

	default:
		logging.From(ctx).Warn("unknown slack event type", "type", eventsAPIEvent.Type)
		w.WriteHeader(http.StatusOK)
	}
}

func (h *SlackWebhookHandler) handleCallback(ctx context.Context, event *slackevents.EventsAPIEvent) error {
	logger := logging.From(ctx)

	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		return h.handleMessage(ctx, ev)

	case *slackevents.MemberJoinedChannelEvent:
		name := h.resolveName(ctx, types.UserID(ev.User))
		return h.events.HandleMemberJoined(ctx, types.UserID(ev.User), name)

	case *slackevents.MemberLeftChannelEvent:
		return h.events.HandleMemberLeft(ctx, types.UserID(ev.User))

	case *slackevents.TeamJoinEvent:
		// workspace-level join precedes the channel join; only the display
		// name is recorded here
		if ev.User == nil {
			return nil
		}
		return h.events.HandleMemberUpdated(ctx, types.UserID(ev.User.ID), ev.User.Name)

	default:
		logger.Debug("ignoring slack event", "type", event.InnerEvent.Type)
		return nil
	}
}

func (h *SlackWebhookHandler) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) error {
	// bot traffic never feeds the engines
	if ev.BotID != "" {
		return nil
	}

	switch ev.SubType {
	case "":
		return h.events.HandleMessage(ctx, messageFromEvent(ev))

	case "message_changed":
		if ev.Message == nil || ev.PreviousMessage == nil {
			return goerr.New("message_changed event missing payloads", goerr.V("ts", ev.TimeStamp))
		}
		if ev.Message.BotID != "" {
			return nil
		}
		edited := messageFromEvent(ev.Message)
		edited.Channel = types.ChannelID(ev.Channel)
		return h.events.HandleMessageEdit(ctx, ev.PreviousMessage.Text, edited)

	default:
		// deletions, thread broadcasts and the like carry no new content
		return nil
	}
}

func messageFromEvent(ev *slackevents.MessageEvent) *model.Message {
	return &model.Message{
		ID:          types.MessageID(ev.TimeStamp),
		Channel:     types.ChannelID(ev.Channel),
		Author:      types.UserID(ev.User),
		Content:     ev.Text,
		Attachments: len(ev.Files),
		// Slack delivers rendered link unfurls as message attachments
		HasPreview: len(ev.Attachments) > 0,
	}
}

func (h *SlackWebhookHandler) resolveName(ctx context.Context, user types.UserID) string {
	if h.names == nil {
		return string(user)
	}
	name, err := h.names.UserName(ctx, user)
	if err != nil {
		errutil.Handle(ctx, err, "failed to resolve user name")
		return string(user)
	}
	return name
}
