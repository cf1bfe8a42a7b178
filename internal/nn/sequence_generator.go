package nn

import (
	"fmt"

	"github.com/born-ml/nmt/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// InitialOutput is the feedback id of the first decoder step.
// It is negative, so LookupFeedback maps it to the zero vector.
const InitialOutput = -1

// Emitter chooses the next token of every batch row from its logits.
type Emitter interface {
	Emit(logits *mat.Dense) []int
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(logits *mat.Dense) []int

// Emit implements Emitter.
func (f EmitterFunc) Emit(logits *mat.Dense) []int {
	return f(logits)
}

// SequenceGenerator couples the readout, the transition GRU and attention
// into a step-wise decoder.
//
// One step, starting from hidden state s and previous token y:
//
//	g, w   = attention(s, attended)
//	logits = readout(s, feedback(y), g)
//	y'     = choose(logits)
//	s'     = GRU(s, fork(feedback(y')) + distribute(g))
//
// The glimpse is computed from the state the step starts from and reaches the
// recurrent update as an auxiliary input.
type SequenceGenerator struct {
	Readout    *Readout
	Fork       *Fork // feedback -> transition inputs
	Distribute *Fork // glimpse -> transition inputs
	Transition *GRU
	Attention  *SequenceContentAttention
}

// NewSequenceGenerator wires a generator from its parts, creating the fork and
// distribute projections under name.
func NewSequenceGenerator(name string, readout *Readout, transition *GRU, attention *SequenceContentAttention, init Init) *SequenceGenerator {
	return &SequenceGenerator{
		Readout:    readout,
		Fork:       NewFork(name+"/fork", readout.Dims().Embed, transition.Dim(), true, init),
		Distribute: NewFork(name+"/att_trans/distribute", attention.AttendedDim(), transition.Dim(), true, init),
		Transition: transition,
		Attention:  attention,
	}
}

// Context is the attended representation a decoder run reads from.
type Context struct {
	Attended     tensor.Sequence // (time, batch, A)
	Preprocessed tensor.Sequence // attended projected into the match space
	Mask         [][]float64     // time-major, nil when every position is valid
}

// NewContext preprocesses attended once for a whole decoder run.
func (g *SequenceGenerator) NewContext(attended tensor.Sequence, mask [][]float64) Context {
	if mask != nil && len(mask) != attended.Len() {
		panic(fmt.Sprintf("SequenceGenerator.NewContext: %d mask steps for %d attended steps", len(mask), attended.Len()))
	}
	return Context{
		Attended:     attended,
		Preprocessed: g.Attention.Preprocess(attended),
		Mask:         mask,
	}
}

// DecoderState is everything a decoder step carries to the next one.
type DecoderState struct {
	States   *mat.Dense // [batch, H]
	Outputs  []int      // previous tokens, InitialOutput before the first step
	Glimpses *mat.Dense // [batch, A] last glimpse
	Weights  *mat.Dense // [time, batch] last attention weights
}

// InitialState returns the state of a run before its first step.
func (g *SequenceGenerator) InitialState(c Context) DecoderState {
	batch := c.Attended.Batch()
	outputs := make([]int, batch)
	for i := range outputs {
		outputs[i] = InitialOutput
	}
	return DecoderState{
		States:   g.Transition.InitialState(batch, c.Attended),
		Outputs:  outputs,
		Glimpses: mat.NewDense(batch, c.Attended.Dim(), nil),
		Weights:  mat.NewDense(c.Attended.Len(), batch, nil),
	}
}

// Phase is the lifecycle stage of a Run.
type Phase int

// Run phases.
const (
	PhaseInitial Phase = iota
	PhaseStep
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseStep:
		return "step"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Run is one decoder pass over a batch.
//
// A Run starts in PhaseInitial, moves to PhaseStep on the first Step and to
// PhaseDone on Finish. A Run is not safe for concurrent use.
type Run struct {
	gen     *SequenceGenerator
	ctx     Context
	state   DecoderState
	phase   Phase
	steps   int
	dropout *Dropout
}

// Start begins a decoder run over c.
func (g *SequenceGenerator) Start(c Context) *Run {
	return &Run{gen: g, ctx: c, state: g.InitialState(c)}
}

// StartFrom begins a run from an explicit state, used by beam search to
// continue reordered hypotheses.
func (g *SequenceGenerator) StartFrom(c Context, s DecoderState) *Run {
	return &Run{gen: g, ctx: c, state: s, phase: PhaseStep}
}

// Phase returns the current phase.
func (r *Run) Phase() Phase {
	return r.phase
}

// Steps returns the number of completed steps.
func (r *Run) Steps() int {
	return r.steps
}

// State returns the state the next step starts from.
func (r *Run) State() DecoderState {
	return r.state
}

// Logits computes the readout of the next step without advancing the run.
// It returns the logits together with the glimpse and weights of the step.
func (r *Run) Logits() (logits, glimpses, weights *mat.Dense) {
	if r.phase == PhaseDone {
		panic("Run.Logits: run is done")
	}
	g := r.gen
	glimpses, weights = g.Attention.TakeGlimpsesPreprocessed(r.state.States, r.ctx.Attended, r.ctx.Preprocessed, r.ctx.Mask)
	logits = g.Readout.Logits(r.state.States, g.Readout.Feed(r.state.Outputs), glimpses, r.dropout)
	return logits, glimpses, weights
}

// Advance commits the tokens chosen at this step and updates the recurrent
// state. mask marks the batch rows whose state may change (nil for all).
func (r *Run) Advance(outputs []int, glimpses, weights *mat.Dense, mask []float64) {
	if r.phase == PhaseDone {
		panic("Run.Advance: run is done")
	}
	batch := len(r.state.Outputs)
	if len(outputs) != batch {
		panic(fmt.Sprintf("Run.Advance: %d outputs for batch %d", len(outputs), batch))
	}
	g := r.gen

	inputs, gates := g.Fork.Forward(g.Readout.Feed(outputs))
	dInputs, dGates := g.Distribute.Forward(glimpses)
	inputs.Add(inputs, dInputs)
	gates.Add(gates, dGates)

	r.state = DecoderState{
		States:   g.Transition.Step(r.state.States, inputs, gates, mask),
		Outputs:  append([]int(nil), outputs...),
		Glimpses: glimpses,
		Weights:  weights,
	}
	r.phase = PhaseStep
	r.steps++
}

// Step runs one full decoder step: glimpse, readout, choice of the emitted
// tokens and recurrent update. It returns the logits the choice was made on
// and the chosen tokens.
func (r *Run) Step(choose func(logits *mat.Dense) []int, mask []float64) (logits *mat.Dense, outputs []int) {
	logits, glimpses, weights := r.Logits()
	outputs = choose(logits)
	r.Advance(outputs, glimpses, weights, mask)
	return logits, outputs
}

// Finish moves the run to PhaseDone.
func (r *Run) Finish() {
	r.phase = PhaseDone
}

// CostOption configures a cost computation.
type CostOption func(*Run)

// WithDropout applies d to the readout maxout output while computing costs.
func WithDropout(d *Dropout) CostOption {
	return func(r *Run) {
		r.dropout = d
	}
}

// CostMatrix computes the teacher-forced negative log-likelihood of every
// target token, as a [time, batch] matrix.
//
// targets and targetMask are (batch, time). The previous ground-truth token
// is fed back at every step. Masked positions cost 0 and do not change the
// decoder state; their target id is never looked up.
func (g *SequenceGenerator) CostMatrix(c Context, targets *tensor.Tokens, targetMask *tensor.Mask, opts ...CostOption) *mat.Dense {
	if targets.Len() == 0 || targets.Batch() == 0 {
		return &mat.Dense{}
	}
	costs := mat.NewDense(targets.Len(), targets.Batch(), nil)
	g.teacherForce(c, targets, targetMask, opts, func(t int, logits *mat.Dense, ids []int, m []float64) {
		for b, v := range g.Readout.Cost(logits, ids) {
			if m != nil {
				v *= m[b]
			}
			costs.Set(t, b, v)
		}
	})
	return costs
}

// ForcedLogits returns the readout logits of every teacher-forced step.
func (g *SequenceGenerator) ForcedLogits(c Context, targets *tensor.Tokens, targetMask *tensor.Mask) []*mat.Dense {
	out := make([]*mat.Dense, 0, targets.Len())
	g.teacherForce(c, targets, targetMask, nil, func(_ int, logits *mat.Dense, _ []int, _ []float64) {
		out = append(out, logits)
	})
	return out
}

func (g *SequenceGenerator) teacherForce(c Context, targets *tensor.Tokens, targetMask *tensor.Mask, opts []CostOption,
	visit func(t int, logits *mat.Dense, ids []int, m []float64)) {
	if targets.Batch() != c.Attended.Batch() {
		panic(fmt.Sprintf("SequenceGenerator: %d target rows, attended batch %d", targets.Batch(), c.Attended.Batch()))
	}
	if targetMask != nil && !targetMask.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("SequenceGenerator: mask shape %v, targets shape %v", targetMask.Shape(), targets.Shape()))
	}

	run := g.Start(c)
	for _, opt := range opts {
		opt(run)
	}
	for t := 0; t < targets.Len(); t++ {
		ids := targets.Step(t)
		var m []float64
		if targetMask != nil {
			m = targetMask.Step(t)
			for b := range ids {
				if m[b] == 0 {
					ids[b] = 0
				}
			}
		}
		logits, _ := run.Step(func(*mat.Dense) []int { return ids }, m)
		visit(t, logits, ids, m)
	}
	run.Finish()
}

// Cost returns the batch loss: the sum of masked token costs divided by the
// number of valid target positions in the whole batch. It returns 0 when no
// position is valid.
func (g *SequenceGenerator) Cost(c Context, targets *tensor.Tokens, targetMask *tensor.Mask, opts ...CostOption) float64 {
	count := float64(targets.Batch() * targets.Len())
	if targetMask != nil {
		count = targetMask.Sum()
	}
	if count == 0 {
		return 0
	}
	return mat.Sum(g.CostMatrix(c, targets, targetMask, opts...)) / count
}

// Generation is the result of a free-running decoder pass.
type Generation struct {
	Outputs *tensor.Tokens // (batch, steps)
	Logits  []*mat.Dense   // per step, [batch, vocab]
	Costs   *mat.Dense     // [steps, batch] NLL of each emitted token
	Weights []*mat.Dense   // per step, [time, batch] attention weights
}

// Generate decodes for exactly steps steps, feeding every emitted token back.
// The first step's feedback is InitialOutput. There is no early stop.
func (g *SequenceGenerator) Generate(c Context, steps int, emitter Emitter) Generation {
	batch := c.Attended.Batch()
	out := Generation{
		Outputs: tensor.NewTokens(batch, steps),
		Logits:  make([]*mat.Dense, 0, steps),
		Costs:   mat.NewDense(max(steps, 1), batch, nil),
		Weights: make([]*mat.Dense, 0, steps),
	}

	run := g.Start(c)
	for t := 0; t < steps; t++ {
		logits, glimpses, weights := run.Logits()
		outputs := emitter.Emit(logits)
		run.Advance(outputs, glimpses, weights, nil)

		for b, y := range outputs {
			out.Outputs.Set(b, t, y)
		}
		for b, v := range g.Readout.Cost(logits, outputs) {
			out.Costs.Set(t, b, v)
		}
		out.Logits = append(out.Logits, logits)
		out.Weights = append(out.Weights, weights)
	}
	run.Finish()
	if steps == 0 {
		out.Costs = nil
	}
	return out
}

// Parameters returns every generator parameter, transition initial state
// included.
func (g *SequenceGenerator) Parameters() []*Parameter {
	return CollectParameters(g.Readout, g.Fork, g.Distribute, g.Transition, g.Attention)
}
