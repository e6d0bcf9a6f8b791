package pipeline

import (
	"github.com/normanking/wisp/internal/activity"
	"github.com/normanking/wisp/internal/emotion"
)

// Tick is what every sink sees for each processed activity sample.
type Tick struct {
	Sample  activity.Sample
	Summary string
	Mood    emotion.Tag
}

// Sink receives each processed tick. Sinks are invoked in the order
// they were registered; one sink failing never stops the others.
type Sink interface {
	Name() string
	OnTick(t Tick) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc struct {
	SinkName string
	Fn       func(t Tick) error
}

func (s SinkFunc) Name() string        { return s.SinkName }
func (s SinkFunc) OnTick(t Tick) error { return s.Fn(t) }
