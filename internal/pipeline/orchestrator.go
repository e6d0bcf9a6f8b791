// Package pipeline drives Wisp's ambient behavior: it consumes activity
// samples, derives a mood, and decides when and how the companion
// speaks unprompted.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/normanking/wisp/internal/activity"
	"github.com/normanking/wisp/internal/brain"
	"github.com/normanking/wisp/internal/emotion"
	"github.com/normanking/wisp/internal/logging"
	"github.com/normanking/wisp/internal/metrics"
	"github.com/normanking/wisp/internal/prompt"
	"github.com/normanking/wisp/internal/reaction"
)

// EmitFunc delivers a companion line to the presentation layer.
type EmitFunc func(line string, mood emotion.Tag)

// StatusFunc delivers a soft status line (e.g. backend unreachable).
type StatusFunc func(status string)

// Chatter is the slice of the chat client the orchestrator needs.
type Chatter interface {
	Chat(ctx context.Context, systemPrompt, userText string, history []brain.ChatTurn) (string, emotion.Tag, error)
	Ping(ctx context.Context) error
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Window          *activity.Window
	Machine         *emotion.Machine
	Cooldown        *emotion.Cooldown
	Templates       *reaction.TemplateStore
	Client          Chatter
	Logger          *logging.Logger
	Emit            EmitFunc
	Status          StatusFunc
	PersonalityHint string
	// QueueSize bounds the sample channel; producers past it block.
	QueueSize int
	// KeepAliveInterval spaces the backend reachability pings.
	KeepAliveInterval time.Duration
}

// errorWindow is how far back model failures count toward frustration.
const errorWindow = 10 * time.Minute

// idleReturnAfter is how long the user must have been away, in seconds,
// before coming back counts as a return worth greeting.
const idleReturnAfter = 900

// idleActiveCeiling is the idle reading, in seconds, under which a
// sample counts as the user being back at the keyboard.
const idleActiveCeiling = 60

// Orchestrator is the single consumer of the activity sample queue. It
// processes one sample's reaction fully, model call included, before
// dequeuing the next.
type Orchestrator struct {
	cfg     Config
	samples chan activity.Sample
	sinks   []Sink

	// errMu guards errorTimes: processSample runs on the consumer
	// goroutine while HourlyReaction runs on the cron goroutine.
	errMu      sync.Mutex
	errorTimes []time.Time

	lastIdle int
	now      func() time.Time
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = time.Minute
	}
	return &Orchestrator{
		cfg:     cfg,
		samples: make(chan activity.Sample, cfg.QueueSize),
		now:     time.Now,
	}
}

// AddSink registers a sink. Sinks run in registration order on every
// tick. Must be called before Run.
func (o *Orchestrator) AddSink(s Sink) {
	o.sinks = append(o.sinks, s)
}

// Submit enqueues an activity sample from any producer.
func (o *Orchestrator) Submit(s activity.Sample) {
	o.samples <- s
}

// Run consumes samples in arrival order until the context is done.
func (o *Orchestrator) Run(ctx context.Context) {
	go o.keepAlive(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-o.samples:
			o.processSample(ctx, s)
		}
	}
}

// processSample runs one full tick. A failure at any stage degrades to
// emitting the locally computed summary line; the tick is never
// silently dropped.
func (o *Orchestrator) processSample(ctx context.Context, s activity.Sample) {
	o.cfg.Window.Add(s)
	recent := o.cfg.Window.Recent()

	summary := activity.Summarize(recent, s.IdleSeconds)
	mood := o.cfg.Machine.Update(recent, s.IdleSeconds, o.recentErrors())

	o.fanOut(Tick{Sample: s, Summary: summary, Mood: mood})

	// Coming back after a long absence is a meaningful event: it
	// bypasses the cooldown and gets its own greeting templates.
	returned := o.lastIdle >= idleReturnAfter && s.IdleSeconds < idleActiveCeiling
	o.lastIdle = s.IdleSeconds

	if !o.cfg.Cooldown.CanSpeak(mood, returned) {
		return
	}

	if returned {
		if line, ok := o.cfg.Templates.Line(reaction.EventIdleReturn, mood); ok {
			o.emit(line, mood, "template")
			return
		}
	}

	if line, ok := o.cfg.Templates.Line(reaction.EventFiveMinute, mood); ok {
		o.emit(line, mood, "template")
		return
	}

	line, err := o.modelReaction(ctx, mood, summary, prompt.FiveMinute)
	if err != nil {
		o.recordError()
		o.cfg.Logger.Warn("pipeline", "Model reaction failed, emitting summary", map[string]interface{}{
			"error": err.Error(),
		})
		o.emit(summary, mood, "summary")
		return
	}
	o.emit(line, mood, "model")
}

// HourlyReaction produces the hourly summary remark. Wired to the cron
// scheduler.
func (o *Orchestrator) HourlyReaction(ctx context.Context) {
	recent := o.cfg.Window.Recent()
	idle := 0
	if len(recent) > 0 {
		idle = recent[len(recent)-1].IdleSeconds
	}

	summary := activity.Summarize(recent, idle)
	mood := o.cfg.Machine.Current()

	if !o.cfg.Cooldown.CanSpeak(mood, false) {
		return
	}

	if line, ok := o.cfg.Templates.Line(reaction.EventHourly, mood); ok {
		o.emit(line, mood, "template")
		return
	}

	line, err := o.modelReaction(ctx, mood, summary, prompt.Hourly)
	if err != nil {
		o.recordError()
		o.emit(summary, mood, "summary")
		return
	}
	o.emit(line, mood, "model")
}

// fanOut invokes sinks in fixed order with isolated failure handling.
func (o *Orchestrator) fanOut(t Tick) {
	for _, sink := range o.sinks {
		if err := sink.OnTick(t); err != nil {
			o.cfg.Logger.Warn("pipeline", "Sink failed", map[string]interface{}{
				"sink":  sink.Name(),
				"error": err.Error(),
			})
		}
	}
}

func (o *Orchestrator) modelReaction(ctx context.Context, mood emotion.Tag, summary string, build func(prompt.Input, string) string) (string, error) {
	system := build(prompt.Input{
		Mood:            mood,
		TimeOfDay:       prompt.TimeOfDay(o.now().Hour()),
		PersonalityHint: o.cfg.PersonalityHint,
	}, summary)

	reply, _, err := o.cfg.Client.Chat(ctx, system, "React to what the user is up to.", nil)
	return reply, err
}

func (o *Orchestrator) emit(line string, mood emotion.Tag, source string) {
	metrics.ReactionsEmitted.WithLabelValues(source).Inc()
	if o.cfg.Emit != nil {
		o.cfg.Emit(line, mood)
	}
	if source != "summary" {
		o.cfg.Cooldown.RecordSpoke()
	}
}

// keepAlive pings the backend on an interval and surfaces a status line
// when it is unreachable.
func (o *Orchestrator) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.KeepAliveInterval)
	defer ticker.Stop()

	wasDown := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := o.cfg.Client.Ping(pingCtx)
			cancel()

			if err != nil && !wasDown {
				wasDown = true
				if o.cfg.Status != nil {
					o.cfg.Status("model backend unreachable")
				}
			} else if err == nil && wasDown {
				wasDown = false
				if o.cfg.Status != nil {
					o.cfg.Status("model backend reachable again")
				}
			}
		}
	}
}

func (o *Orchestrator) recordError() {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	o.errorTimes = append(o.errorTimes, o.now())
}

// recentErrors counts model failures inside the error window.
func (o *Orchestrator) recentErrors() int {
	o.errMu.Lock()
	defer o.errMu.Unlock()

	cutoff := o.now().Add(-errorWindow)
	kept := o.errorTimes[:0]
	for _, t := range o.errorTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	o.errorTimes = kept
	return len(kept)
}
