package playback

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
)

// fakeClock advances instantly on sleep so wait loops run deterministically.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 7, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

// statusStep scripts one poll reply.
type statusStep struct {
	status entities.PlaybackStatus
	err    error
}

type fakePlayer struct {
	calls []string

	speakErr   error
	playURLErr error

	script    []statusStep
	scriptIdx int
}

func (p *fakePlayer) Speak(ctx context.Context, text string) error {
	p.calls = append(p.calls, "speak:"+text)
	return p.speakErr
}

func (p *fakePlayer) PlayURL(ctx context.Context, url string) error {
	p.calls = append(p.calls, "play:"+url)
	return p.playURLErr
}

func (p *fakePlayer) SetVolume(ctx context.Context, level int) error {
	p.calls = append(p.calls, fmt.Sprintf("volume:%d", level))
	return nil
}

func (p *fakePlayer) GetStatus(ctx context.Context) (entities.PlaybackStatus, error) {
	p.calls = append(p.calls, "status")
	step := statusStep{}
	if p.scriptIdx < len(p.script) {
		step = p.script[p.scriptIdx]
		p.scriptIdx++
	}
	return step.status, step.err
}

func playing(duration, position float64) entities.PlaybackStatus {
	return entities.PlaybackStatus{Playing: true, Duration: &duration, Position: &position}
}

func newTestOrchestrator(t *testing.T, player *fakePlayer, clock *fakeClock) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(player, Config{
		MinWait:      5 * time.Second,
		PollInterval: 5 * time.Second,
		MaxWait:      10 * time.Second,
	}, zaptest.NewLogger(t))
	o.clock = clock
	return o
}

func TestRunMediaUnitCompletes(t *testing.T) {
	player := &fakePlayer{
		script: []statusStep{
			{status: entities.PlaybackStatus{Playing: true}}, // within min wait, ignored
			{status: entities.PlaybackStatus{Playing: false}},
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(t, player, clock)

	report := o.Run(context.Background(), []entities.PlaybackUnit{
		entities.NewMediaUnit("https://cdn.example.com/a.mp3"),
	})

	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(report.Results))
	}
	res := report.Results[0]
	if res.State != entities.UnitStateDone {
		t.Errorf("expected done, got %s (%s)", res.State, res.Error)
	}
	if res.Elapsed != 5*time.Second {
		t.Errorf("expected 5s elapsed, got %v", res.Elapsed)
	}
}

func TestRunMediaUnitNearEndCountsAsDone(t *testing.T) {
	player := &fakePlayer{
		script: []statusStep{
			{status: playing(120, 10)},
			{status: playing(120, 119)},
		},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(t, player, clock)

	report := o.Run(context.Background(), []entities.PlaybackUnit{
		entities.NewMediaUnit("https://cdn.example.com/a.mp3"),
	})

	if got := report.Results[0].State; got != entities.UnitStateDone {
		t.Errorf("expected done within the near-end window, got %s", got)
	}
}

func TestRunMediaUnitTimesOutAtCeiling(t *testing.T) {
	stuck := playing(300, 10)
	player := &fakePlayer{
		script: []statusStep{{status: stuck}, {status: stuck}, {status: stuck}, {status: stuck}},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(t, player, clock)

	report := o.Run(context.Background(), []entities.PlaybackUnit{
		entities.NewMediaUnit("https://cdn.example.com/a.mp3"),
	})

	res := report.Results[0]
	if res.State != entities.UnitStateTimedOut {
		t.Fatalf("expected timed_out, got %s", res.State)
	}
	// Polls at t=0s and t=5s, then the t=10s iteration hits the 10s ceiling
	// before polling again.
	if res.Elapsed != 10*time.Second {
		t.Errorf("expected the unit to settle at the ceiling, elapsed %v", res.Elapsed)
	}
	polls := 0
	for _, call := range player.calls {
		if call == "status" {
			polls++
		}
	}
	if polls != 2 {
		t.Errorf("expected 2 polls before the ceiling, got %d", polls)
	}
}

func TestRunSwallowsPollErrors(t *testing.T) {
	player := &fakePlayer{
		script: []statusStep{
			{err: errors.New("gateway flapped")},
			{err: errors.New("gateway flapped")},
			{status: entities.PlaybackStatus{Playing: false}},
		},
	}
	clock := newFakeClock()
	o := NewOrchestrator(player, Config{
		MinWait:      5 * time.Second,
		PollInterval: 5 * time.Second,
		MaxWait:      60 * time.Second,
	}, zaptest.NewLogger(t))
	o.clock = clock

	report := o.Run(context.Background(), []entities.PlaybackUnit{
		entities.NewMediaUnit("https://cdn.example.com/a.mp3"),
	})

	if got := report.Results[0].State; got != entities.UnitStateDone {
		t.Errorf("poll errors should be retried, got %s", got)
	}
}

func TestRunContinuesPastFailedUnit(t *testing.T) {
	player := &fakePlayer{playURLErr: errors.New("remote error code=100")}
	clock := newFakeClock()
	o := newTestOrchestrator(t, player, clock)

	units := []entities.PlaybackUnit{
		entities.NewTextUnit("第一段。"),
		entities.NewMediaUnit("https://cdn.example.com/broken.mp3"),
		entities.NewTextUnit("第三段。"),
	}
	report := o.Run(context.Background(), units)

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	wantStates := []entities.UnitState{
		entities.UnitStateDone,
		entities.UnitStateFailed,
		entities.UnitStateDone,
	}
	for i, want := range wantStates {
		if got := report.Results[i].State; got != want {
			t.Errorf("unit %d: expected %s, got %s", i+1, want, got)
		}
	}
	if report.Results[1].Error == "" {
		t.Error("failed unit should carry the error text")
	}

	// The failed media unit must not block the third from being sent.
	wantCalls := []string{"speak:第一段。", "play:https://cdn.example.com/broken.mp3", "speak:第三段。"}
	if len(player.calls) != len(wantCalls) {
		t.Fatalf("expected calls %v, got %v", wantCalls, player.calls)
	}
	for i, want := range wantCalls {
		if player.calls[i] != want {
			t.Errorf("call %d: expected %q, got %q", i, want, player.calls[i])
		}
	}
}

func TestRunPacesTextUnitsExceptLast(t *testing.T) {
	player := &fakePlayer{}
	clock := newFakeClock()
	o := newTestOrchestrator(t, player, clock)

	first := "这是一个比较长的测试句子用来估算时长。"
	report := o.Run(context.Background(), []entities.PlaybackUnit{
		entities.NewTextUnit(first),
		entities.NewTextUnit("完。"),
	})

	if report.Count(entities.UnitStateDone) != 2 {
		t.Fatalf("expected both units done, got %s", report.Summary())
	}
	if len(clock.sleeps) != 1 {
		t.Fatalf("expected exactly one pacing sleep, got %v", clock.sleeps)
	}
	if clock.sleeps[0] != PaceFor(first) {
		t.Errorf("expected pacing sleep %v, got %v", PaceFor(first), clock.sleeps[0])
	}
}

func TestRunCanceledContextFailsUnit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	player := &fakePlayer{
		script: []statusStep{{err: context.Canceled}},
	}
	clock := newFakeClock()
	o := newTestOrchestrator(t, player, clock)

	report := o.Run(ctx, []entities.PlaybackUnit{
		entities.NewMediaUnit("https://cdn.example.com/a.mp3"),
	})

	if got := report.Results[0].State; got != entities.UnitStateFailed {
		t.Errorf("expected failed on canceled context, got %s", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status entities.PlaybackStatus
		want   bool
	}{
		{"not playing is finished", entities.PlaybackStatus{Playing: false}, true},
		{"near end is finished", playing(120, 119), true},
		{"exactly at window edge", playing(120, 118), true},
		{"mid playback keeps waiting", playing(120, 10), false},
		{"playing without detail keeps waiting", entities.PlaybackStatus{Playing: true}, false},
		{"zero duration keeps waiting", playing(0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.status); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestPaceFor(t *testing.T) {
	tests := []struct {
		name string
		text string
		want time.Duration
	}{
		{"empty text still waits a second", "", time.Second},
		{"short text floors at one second", "你好", time.Second},
		{"eleven runes round to two seconds", "一二三四五六七八九十一", 2 * time.Second},
		{"long text scales linearly", repeatRune('字', 55), 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PaceFor(tt.text); got != tt.want {
				t.Errorf("expected %v for %d runes, got %v",
					tt.want, len([]rune(tt.text)), got)
			}
		})
	}
}

func repeatRune(r rune, n int) string {
	runes := make([]rune, n)
	for i := range runes {
		runes[i] = r
	}
	return string(runes)
}
