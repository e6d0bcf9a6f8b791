package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/normanking/wisp/internal/activity"
	"github.com/normanking/wisp/internal/brain"
	"github.com/normanking/wisp/internal/emotion"
	"github.com/normanking/wisp/internal/logging"
	"github.com/normanking/wisp/internal/reaction"
)

// fakeChatter scripts the model backend for orchestrator tests.
type fakeChatter struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	last  string // last system prompt
}

func (f *fakeChatter) Chat(ctx context.Context, systemPrompt, userText string, history []brain.ChatTurn) (string, emotion.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = systemPrompt
	if f.err != nil {
		return "", emotion.TagNeutral, f.err
	}
	return f.reply, emotion.TagNeutral, nil
}

func (f *fakeChatter) Ping(ctx context.Context) error { return nil }

type emitted struct {
	line string
	mood emotion.Tag
}

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	l, err := logging.New(&logging.Config{
		LogDir:  t.TempDir(),
		Level:   logging.LevelError,
		Console: false,
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// seededTemplates loads the built-in defaults from a fresh temp file.
func seededTemplates(t *testing.T) *reaction.TemplateStore {
	t.Helper()
	s, err := reaction.LoadTemplateStore(filepath.Join(t.TempDir(), "templates.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// emptyTemplates loads a valid file with no entries, forcing the model
// path on every tick.
func emptyTemplates(t *testing.T) *reaction.TemplateStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	if err := os.WriteFile(path, []byte("templates: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := reaction.LoadTemplateStore(path)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func daytimeClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 6, 10, 14, 0, 0, 0, time.Local)
	}
}

func newTestOrchestrator(t *testing.T, chatter *fakeChatter, templates *reaction.TemplateStore, out *[]emitted) *Orchestrator {
	t.Helper()

	machine := emotion.NewMachine(emotion.DefaultMachineConfig())
	machine.SetClock(daytimeClock())
	cooldown := emotion.NewCooldown(nil)
	cooldown.SetClock(daytimeClock())

	o := New(Config{
		Window:    activity.NewWindow(12),
		Machine:   machine,
		Cooldown:  cooldown,
		Templates: templates,
		Client:    chatter,
		Logger:    testLogger(t),
		Emit: func(line string, mood emotion.Tag) {
			*out = append(*out, emitted{line: line, mood: mood})
		},
	})
	o.now = daytimeClock()
	return o
}

func TestOrchestrator_TemplateShortCircuit(t *testing.T) {
	var out []emitted
	chatter := &fakeChatter{reply: "should not be used"}
	o := newTestOrchestrator(t, chatter, seededTemplates(t), &out)

	// Long idle at 14:00 derives bored, which has a seeded template.
	o.processSample(context.Background(), activity.Sample{
		Timestamp: time.Now(), Process: "code", IdleSeconds: 1200,
	})

	if len(out) != 1 {
		t.Fatalf("expected one emission, got %d", len(out))
	}
	if out[0].mood != emotion.TagBored {
		t.Errorf("mood = %v, want bored", out[0].mood)
	}
	if chatter.calls != 0 {
		t.Error("a template hit must not invoke the model")
	}
}

func TestOrchestrator_IdleReturnGreeting(t *testing.T) {
	var out []emitted
	chatter := &fakeChatter{reply: "unused"}
	o := newTestOrchestrator(t, chatter, seededTemplates(t), &out)

	// A long absence, then activity again. The first tick speaks (bored
	// template) and starts the cooldown; the return is meaningful, so
	// the greeting bypasses it.
	o.processSample(context.Background(), activity.Sample{
		Timestamp: time.Now(), Process: "finder", IdleSeconds: 1200,
	})
	o.processSample(context.Background(), activity.Sample{
		Timestamp: time.Now(), Process: "finder", IdleSeconds: 0,
	})

	if len(out) != 2 {
		t.Fatalf("expected a bored line then a greeting, got %d emissions", len(out))
	}
	if !strings.Contains(out[1].line, "back") && !strings.Contains(out[1].line, "There you are") {
		t.Errorf("second emission should be an idle-return greeting, got %q", out[1].line)
	}
	if chatter.calls != 0 {
		t.Error("idle-return greetings come from templates, not the model")
	}
}

func TestOrchestrator_ModelPathAndCooldown(t *testing.T) {
	var out []emitted
	chatter := &fakeChatter{reply: "Popping in to say the terminal suits you."}
	o := newTestOrchestrator(t, chatter, emptyTemplates(t), &out)

	sample := activity.Sample{Timestamp: time.Now(), Process: "finder"}
	o.processSample(context.Background(), sample)

	if chatter.calls != 1 {
		t.Fatalf("expected one model call, got %d", chatter.calls)
	}
	if len(out) != 1 || out[0].line != chatter.reply {
		t.Fatalf("model reply not emitted: %+v", out)
	}
	if !strings.Contains(chatter.last, "Plain text only") {
		t.Error("ambient reaction should use the plain-text prompt")
	}

	// Speaking starts the cooldown; the next tick stays quiet.
	o.processSample(context.Background(), sample)
	if len(out) != 1 {
		t.Errorf("cooldown should suppress the second emission, got %d", len(out))
	}
	if chatter.calls != 1 {
		t.Errorf("cooldown should suppress the second model call, got %d", chatter.calls)
	}
}

func TestOrchestrator_DegradesToSummaryOnModelFailure(t *testing.T) {
	var out []emitted
	chatter := &fakeChatter{err: errors.New("backend down")}
	o := newTestOrchestrator(t, chatter, emptyTemplates(t), &out)

	o.processSample(context.Background(), activity.Sample{
		Timestamp: time.Now(), Process: "code", WindowTitle: "main.go",
	})

	if len(out) != 1 {
		t.Fatalf("a failed tick must still emit, got %d emissions", len(out))
	}
	if out[0].line != "just getting started" && !strings.Contains(out[0].line, "editor") {
		t.Errorf("fallback should be the computed summary, got %q", out[0].line)
	}

	// Summary fallbacks do not start the cooldown, so the next tick
	// tries the model again.
	o.processSample(context.Background(), activity.Sample{
		Timestamp: time.Now(), Process: "code", WindowTitle: "main.go",
	})
	if chatter.calls != 2 {
		t.Errorf("fallback emissions must not start the cooldown, calls=%d", chatter.calls)
	}
}

func TestOrchestrator_RepeatedFailuresDeriveFrustration(t *testing.T) {
	var out []emitted
	chatter := &fakeChatter{err: errors.New("backend down")}
	o := newTestOrchestrator(t, chatter, emptyTemplates(t), &out)

	sample := activity.Sample{Timestamp: time.Now(), Process: "code", WindowTitle: "main.go"}
	o.processSample(context.Background(), sample)
	o.processSample(context.Background(), sample)

	// Two failures inside the window tip the third tick into frustration.
	o.processSample(context.Background(), sample)
	if len(out) != 3 {
		t.Fatalf("expected 3 emissions, got %d", len(out))
	}
	if out[2].mood != emotion.TagFrustrated {
		t.Errorf("third tick mood = %v, want frustrated", out[2].mood)
	}
}

func TestOrchestrator_SinkFailureIsolated(t *testing.T) {
	var out []emitted
	var firstRan, secondRan bool
	o := newTestOrchestrator(t, &fakeChatter{reply: "hi"}, emptyTemplates(t), &out)

	o.AddSink(SinkFunc{SinkName: "broken", Fn: func(Tick) error {
		firstRan = true
		return errors.New("sink exploded")
	}})
	o.AddSink(SinkFunc{SinkName: "healthy", Fn: func(t Tick) error {
		secondRan = true
		if t.Summary == "" {
			return errors.New("missing summary")
		}
		return nil
	}})

	o.processSample(context.Background(), activity.Sample{Timestamp: time.Now(), Process: "code"})

	if !firstRan || !secondRan {
		t.Errorf("all sinks must run, first=%v second=%v", firstRan, secondRan)
	}
	if len(out) != 1 {
		t.Errorf("a sink failure must not stop the tick, emissions=%d", len(out))
	}
}

func TestOrchestrator_ConcurrentHourlyAndSamples(t *testing.T) {
	var out []emitted
	var mu sync.Mutex
	chatter := &fakeChatter{err: errors.New("backend down")}

	machine := emotion.NewMachine(emotion.DefaultMachineConfig())
	machine.SetClock(daytimeClock())
	cooldown := emotion.NewCooldown(nil)
	cooldown.SetClock(daytimeClock())

	o := New(Config{
		Window:    activity.NewWindow(12),
		Machine:   machine,
		Cooldown:  cooldown,
		Templates: emptyTemplates(t),
		Client:    chatter,
		Logger:    testLogger(t),
		Emit: func(line string, mood emotion.Tag) {
			mu.Lock()
			out = append(out, emitted{line: line, mood: mood})
			mu.Unlock()
		},
	})
	o.now = daytimeClock()

	// The consumer goroutine records errors while the cron goroutine
	// reads them through HourlyReaction.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			o.processSample(context.Background(), activity.Sample{
				Timestamp: time.Now(), Process: "code",
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			o.HourlyReaction(context.Background())
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(out) == 0 {
		t.Error("failing ticks should still emit summary lines")
	}
}

func TestOrchestrator_HourlyReaction(t *testing.T) {
	var out []emitted
	chatter := &fakeChatter{reply: "A quiet hour, nicely spent."}
	o := newTestOrchestrator(t, chatter, emptyTemplates(t), &out)

	o.cfg.Window.Add(activity.Sample{Timestamp: time.Now(), Process: "code", WindowTitle: "main.go"})
	o.HourlyReaction(context.Background())

	if len(out) != 1 || out[0].line != chatter.reply {
		t.Fatalf("hourly reaction not emitted: %+v", out)
	}
	if !strings.Contains(chatter.last, "It has been about an hour.") {
		t.Error("hourly reaction should use the hourly prompt")
	}
}
