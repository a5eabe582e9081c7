// Package pipeline is the staged linear evaluator a connection runs every
// inbound frame through (§4.2): a fixed ordered list of Stage
// implementations, each able to reject the frame outright or hand it to
// the next stage, with bit-exact NIP rejection frames queued on the way
// out.
package pipeline

import (
	"encoding/json"

	"nostrium.dev/encoders/event"
	"nostrium.dev/encoders/filters"
	"nostrium.dev/protocol/envelopes"
	"nostrium.dev/protocol/envelopes/noticeenvelope"
)

// Connection is the minimal per-connection state the pipeline stages read
// and mutate. Concrete connection types (e.g. app/relay's session) embed
// or adapt to this shape.
type Connection interface {
	Authenticated() bool
	AuthedPubkey() []byte
	SubscriptionCount() int
}

// Context threads one inbound frame through the stage list.
type Context struct {
	RawFrame []byte

	Label   envelopes.L
	Rest    []json.RawMessage
	Event   *event.E // set for EVENT/AUTH frames; Event.Id may be the "claimed" id of an otherwise-invalid event
	SubID   string
	Filters *filters.T

	Conn Connection

	// QueuedFrames accumulates outbound frames the stages produce,
	// written to the socket in order once the engine finishes.
	QueuedFrames [][]byte

	// Err is the error returned by the stage that terminated the
	// pipeline, set by Engine.Run. Reason is not set by Engine.Run or by
	// any stage in this package.
	Err    error
	Reason string
}

// Queue appends a pre-rendered outbound frame.
func (c *Context) Queue(frame []byte) { c.QueuedFrames = append(c.QueuedFrames, frame) }

// Stage is one link in the pipeline.
type Stage interface {
	Name() string
	Run(ctx *Context) error
}

// Engine runs frames through a fixed stage list.
type Engine struct {
	Stages   []Stage
	Messages uint64
}

// NewEngine builds an engine from an explicit stage list, in the order
// they should run.
func NewEngine(stages ...Stage) *Engine { return &Engine{Stages: stages} }

// Run executes every stage in order against ctx, stopping at the first
// error. It always returns ctx.QueuedFrames, and if no stage queued a
// frame on error, appends a default NOTICE.
func (e *Engine) Run(ctx *Context) [][]byte {
	e.Messages++
	for _, stage := range e.Stages {
		if err := stage.Run(ctx); err != nil {
			ctx.Err = err
			if len(ctx.QueuedFrames) == 0 {
				if n, merr := (&noticeenvelope.T{Message: err.Error()}).Marshal(); merr == nil {
					ctx.Queue(n)
				}
			}
			return ctx.QueuedFrames
		}
	}
	return ctx.QueuedFrames
}
