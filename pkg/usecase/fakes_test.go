package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/model/config"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"github.com/secmon-lab/warden/pkg/repository/memory"
	slacksvc "github.com/secmon-lab/warden/pkg/service/slack"
	"github.com/secmon-lab/warden/pkg/usecase"
)

// sinkCall records one side effect issued against the fake sink
type sinkCall struct {
	Op      string
	User    types.UserID
	Role    types.RoleID
	Channel types.ChannelID
	Message types.MessageID
	Content string
	Reason  string
}

type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
	fail  map[string]error
	roles map[types.UserID][]types.RoleID
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		fail:  map[string]error{},
		roles: map[types.UserID][]types.RoleID{},
	}
}

func (f *fakeSink) record(c sinkCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.fail[c.Op]
}

func (f *fakeSink) ops(op string) []sinkCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sinkCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeSink) AddRole(_ context.Context, user types.UserID, role types.RoleID, reason string) error {
	return f.record(sinkCall{Op: "add-role", User: user, Role: role, Reason: reason})
}

func (f *fakeSink) RemoveRole(_ context.Context, user types.UserID, role types.RoleID, reason string) error {
	return f.record(sinkCall{Op: "remove-role", User: user, Role: role, Reason: reason})
}

func (f *fakeSink) Silence(_ context.Context, user types.UserID, reason string) error {
	return f.record(sinkCall{Op: "silence", User: user, Reason: reason})
}

func (f *fakeSink) DeleteMessage(_ context.Context, channel types.ChannelID, id types.MessageID) error {
	return f.record(sinkCall{Op: "delete-message", Channel: channel, Message: id})
}

func (f *fakeSink) SendMessage(_ context.Context, channel types.ChannelID, content string) error {
	return f.record(sinkCall{Op: "send-message", Channel: channel, Content: content})
}

func (f *fakeSink) Unban(_ context.Context, user types.UserID) error {
	return f.record(sinkCall{Op: "unban", User: user})
}

func (f *fakeSink) HasRole(_ context.Context, user types.UserID, role types.RoleID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["has-role"]; err != nil {
		return false, err
	}
	for _, r := range f.roles[user] {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSink) MemberRoles(_ context.Context, user types.UserID) ([]types.RoleID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["member-roles"]; err != nil {
		return nil, err
	}
	return append([]types.RoleID{}, f.roles[user]...), nil
}

func (f *fakeSink) grantRole(user types.UserID, role types.RoleID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[user] = append(f.roles[user], role)
}

var errSinkUnavailable = goerr.New("sink unavailable")

// fixedClock is a mutable time source shared by a test and its engines
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{t: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *config.Moderation {
	return &config.Moderation{
		LogChannel: "C-MODLOG",
		BypassRole: "",
		Pressure: config.Pressure{
			BasePressure:           10,
			MaxPressure:            60,
			PressureDecay:          2.5,
			ImageWeight:            8.33333333,
			PingWeight:             2.5,
			LengthWeight:           0.00625,
			LineWeight:             0.714,
			RepeatWeight:           10,
			EditReprocessThreshold: 10,
			SilencedRole:           "S-SILENCED",
		},
		Raid: config.Raid{
			SmallSize:          3,
			LargeSize:          6,
			RecentJoinDecaySec: 300,
			SmallDecayMin:      10,
			LargeDecayMin:      30,
		},
		Filter: []config.FilterCategory{
			{Name: "slurs", Words: []string{"badword"}, Response: "that word is not welcome here", Silence: true},
			{Name: "spam", Words: []string{"free nitro"}, Response: "", Silence: false},
		},
		Scheduler: config.Scheduler{TickIntervalSec: 1},
		Banner: config.Banner{
			Enabled:     true,
			IntervalMin: 60,
			Channel:     "C-BANNER",
			URLs:        []string{"https://example.com/a.png", "https://example.com/b.png"},
		},
	}
}

// newTestUseCases wires the engines against in-memory storage and a fake
// sink, with a controllable clock.
func newTestUseCases(cfg *config.Moderation) (*usecase.UseCases, *fakeSink, *memory.Memory, *fixedClock) {
	repo := memory.New()
	sink := newFakeSink()
	modlog := slacksvc.NewModLog(sink, types.ChannelID(cfg.LogChannel))
	uc := usecase.New(repo, sink, sink, modlog, cfg)

	clock := newFixedClock(time.Now().UTC())
	uc.SetClock(clock.Now)
	return uc, sink, repo, clock
}
