package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	httpctrl "github.com/secmon-lab/warden/pkg/controller/http"
	"github.com/secmon-lab/warden/pkg/domain/model/config"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"github.com/secmon-lab/warden/pkg/repository/memory"
	slacksvc "github.com/secmon-lab/warden/pkg/service/slack"
	"github.com/secmon-lab/warden/pkg/usecase"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// Export the private function for testing
var VerifySlackSignature = httpctrl.VerifySlackSignature

// computeSlackSignature computes the Slack signature for testing
func computeSlackSignature(signingSecret, timestamp, body string) string {
	baseString := fmt.Sprintf("v0:%s:%s", timestamp, body)
	h := hmac.New(sha256.New, []byte(signingSecret))
	h.Write([]byte(baseString))
	return "v0=" + hex.EncodeToString(h.Sum(nil))
}

func TestVerifySlackSignature(t *testing.T) {
	signingSecret := "test-signing-secret"
	body := []byte(`{"type":"url_verification","challenge":"test"}`)

	t.Run("valid signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature(signingSecret, timestamp, string(body))

		if err := VerifySlackSignature(signingSecret, timestamp, signature, body); err != nil {
			t.Errorf("expected no error, got: %v", err)
		}
	})

	t.Run("invalid signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)

		if err := VerifySlackSignature(signingSecret, timestamp, "v0=invalid_signature", body); err == nil {
			t.Error("expected error for invalid signature, got nil")
		}
	})

	t.Run("missing timestamp", func(t *testing.T) {
		signature := computeSlackSignature(signingSecret, "123456", string(body))

		if err := VerifySlackSignature(signingSecret, "", signature, body); err == nil {
			t.Error("expected error for missing timestamp, got nil")
		}
	})

	t.Run("timestamp too old", func(t *testing.T) {
		oldTimestamp := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
		signature := computeSlackSignature(signingSecret, oldTimestamp, string(body))

		if err := VerifySlackSignature(signingSecret, oldTimestamp, signature, body); err == nil {
			t.Error("expected error for old timestamp, got nil")
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature("wrong-secret", timestamp, string(body))

		if err := VerifySlackSignature(signingSecret, timestamp, signature, body); err == nil {
			t.Error("expected error when using wrong secret, got nil")
		}
	})
}

// recordingSink satisfies the action sink and role directory interfaces,
// recording side effects for assertions
type recordingSink struct {
	mu      sync.Mutex
	deleted []types.MessageID
}

func (f *recordingSink) AddRole(context.Context, types.UserID, types.RoleID, string) error {
	return nil
}
func (f *recordingSink) RemoveRole(context.Context, types.UserID, types.RoleID, string) error {
	return nil
}
func (f *recordingSink) Silence(context.Context, types.UserID, string) error { return nil }
func (f *recordingSink) DeleteMessage(_ context.Context, _ types.ChannelID, id types.MessageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}
func (f *recordingSink) SendMessage(context.Context, types.ChannelID, string) error { return nil }
func (f *recordingSink) Unban(context.Context, types.UserID) error                  { return nil }
func (f *recordingSink) HasRole(context.Context, types.UserID, types.RoleID) (bool, error) {
	return false, nil
}
func (f *recordingSink) MemberRoles(context.Context, types.UserID) ([]types.RoleID, error) {
	return nil, nil
}
func (f *recordingSink) UserName(_ context.Context, user types.UserID) (string, error) {
	return string(user), nil
}

func (f *recordingSink) deletedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

func newTestServer(sink *recordingSink, signingSecret string) *httpctrl.Server {
	cfg := &config.Moderation{
		Pressure: config.Pressure{BasePressure: 10, MaxPressure: 60, PressureDecay: 2.5},
		Raid:     config.Raid{SmallSize: 3, LargeSize: 6, RecentJoinDecaySec: 300, SmallDecayMin: 10, LargeDecayMin: 30},
		Filter: []config.FilterCategory{
			{Name: "spam", Words: []string{"badword"}},
		},
		Scheduler: config.Scheduler{TickIntervalSec: 1},
	}
	modlog := slacksvc.NewModLog(sink, "")
	uc := usecase.New(memory.New(), sink, sink, modlog, cfg)
	webhook := httpctrl.NewSlackWebhookHandler(uc.Event, sink)
	return httpctrl.New(webhook, signingSecret)
}

func postSigned(t *testing.T, srv *httpctrl.Server, secret, body string) *httptest.ResponseRecorder {
	t.Helper()
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewBufferString(body))
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", computeSlackSignature(secret, timestamp, body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestWebhookURLVerification(t *testing.T) {
	srv := newTestServer(&recordingSink{}, "secret")
	body := `{"type":"url_verification","challenge":"challenge-token"}`

	rec := postSigned(t, srv, "secret", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp, _ := io.ReadAll(rec.Body)
	if string(resp) != "challenge-token" {
		t.Errorf("expected challenge echo, got %q", resp)
	}
}

func TestWebhookRejectsUnsignedRequest(t *testing.T) {
	srv := newTestServer(&recordingSink{}, "secret")

	req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event",
		bytes.NewBufferString(`{"type":"url_verification","challenge":"x"}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestWebhookRoutesMessageToEngines(t *testing.T) {
	sink := &recordingSink{}
	srv := newTestServer(sink, "secret")

	body := `{"type":"event_callback","team_id":"T1","event":{"type":"message","user":"U-MALLORY","text":"well, badword","ts":"1700000000.000100","channel":"C-GENERAL"}}`
	rec := postSigned(t, srv, "secret", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// processing is asynchronous; the webhook acks before the engines run
	deadline := time.Now().Add(2 * time.Second)
	for sink.deletedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := sink.deletedCount(); got != 1 {
		t.Fatalf("expected 1 deleted message, got %d", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&recordingSink{}, "secret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMessageFromEventMapsPreview(t *testing.T) {
	ev := &slackevents.MessageEvent{
		TimeStamp: "1700000000.000200",
		Channel:   "C-GENERAL",
		User:      "U-ALICE",
		Text:      "look at https://example.com",
		Attachments: []slack.Attachment{
			{Title: "Example", Text: "rendered unfurl"},
		},
		Files: []slackevents.File{{ID: "F1"}},
	}

	msg := httpctrl.MessageFromEvent(ev)
	if !msg.HasPreview {
		t.Error("expected a rendered unfurl to set HasPreview")
	}
	if msg.Attachments != 1 {
		t.Errorf("expected 1 file attachment, got %d", msg.Attachments)
	}

	bare := httpctrl.MessageFromEvent(&slackevents.MessageEvent{
		TimeStamp: "1700000000.000300",
		Channel:   "C-GENERAL",
		User:      "U-ALICE",
		Text:      "https://example.com with no preview",
	})
	if bare.HasPreview {
		t.Error("expected no preview without attachments")
	}
}
