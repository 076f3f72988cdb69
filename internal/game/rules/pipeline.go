package rules

import "errors"

// Step is a single unit of work in the resolution pipeline. Continue executes
// or advances the step and returns true once the step has completed. A step
// waiting for player input returns false and is polled again by the outer
// game loop; nothing in the engine blocks.
type Step interface {
	Continue() bool
}

// Queuer is implemented by steps that own their own child pipeline. Work
// queued while such a step is at the head of a pipeline is routed into the
// step itself, which yields depth-first drainage of nested windows.
type Queuer interface {
	QueueStep(step Step)
}

// SimpleStep wraps a function as an always-completing step.
type SimpleStep struct {
	action func()
}

// NewSimpleStep creates a step that runs the given function once.
func NewSimpleStep(action func()) *SimpleStep {
	return &SimpleStep{action: action}
}

// Continue runs the wrapped function and reports completion.
func (s *SimpleStep) Continue() bool {
	if s.action != nil {
		s.action()
	}
	return true
}

// ErrPipelineBusy is returned when Initialize is called on a pipeline that is
// currently processing steps. That indicates a broken caller, not a game
// condition.
var ErrPipelineBusy = errors.New("pipeline: initialize called while processing")

// Pipeline executes an ordered sequence of steps. A step may queue follow-up
// steps while executing; queued steps are spliced in front of the remaining
// pending steps (including an incomplete head step), so dynamically created
// work drains in pre-order depth-first fashion before the original sequence
// resumes.
type Pipeline struct {
	steps   []Step
	queue   []Step
	running bool
}

// Initialize replaces the pending steps with the given sequence.
func (p *Pipeline) Initialize(steps []Step) error {
	if p.running {
		return ErrPipelineBusy
	}
	p.steps = append([]Step(nil), steps...)
	p.queue = nil
	return nil
}

// QueueStep inserts a step to run before the remaining pending steps. When
// the head step owns a child pipeline the step is delegated to it instead.
func (p *Pipeline) QueueStep(step Step) {
	if len(p.steps) > 0 {
		if child, ok := p.steps[0].(Queuer); ok {
			child.QueueStep(step)
			return
		}
	}
	p.queue = append(p.queue, step)
}

// Length returns the number of pending steps, not counting queued ones.
func (p *Pipeline) Length() int {
	return len(p.steps)
}

// Continue advances execution until the pipeline is drained or the head step
// reports itself incomplete with no queued work. Returns true when fully
// drained.
func (p *Pipeline) Continue() bool {
	p.running = true
	defer func() { p.running = false }()

	p.spliceQueue()
	for len(p.steps) > 0 {
		step := p.steps[0]
		done := step.Continue()
		if !done && len(p.queue) == 0 {
			return false
		}
		if done {
			p.remove(step)
		}
		p.spliceQueue()
	}
	return true
}

// spliceQueue moves queued steps in front of the pending steps. An incomplete
// head step ends up behind the steps it queued, so its follow-up work runs
// before it is polled again.
func (p *Pipeline) spliceQueue() {
	if len(p.queue) == 0 {
		return
	}
	merged := make([]Step, 0, len(p.queue)+len(p.steps))
	merged = append(merged, p.queue...)
	merged = append(merged, p.steps...)
	p.steps = merged
	p.queue = nil
}

func (p *Pipeline) remove(step Step) {
	for i, s := range p.steps {
		if s == step {
			p.steps = append(p.steps[:i], p.steps[i+1:]...)
			return
		}
	}
}

// BaseStepWithPipeline is embedded by steps that expand into their own child
// steps (event windows, ability windows). The embedding step initialises the
// inner pipeline and completes once it drains.
type BaseStepWithPipeline struct {
	pipeline Pipeline
}

// QueueStep queues a step onto the inner pipeline.
func (s *BaseStepWithPipeline) QueueStep(step Step) {
	s.pipeline.QueueStep(step)
}

// Continue advances the inner pipeline.
func (s *BaseStepWithPipeline) Continue() bool {
	return s.pipeline.Continue()
}
