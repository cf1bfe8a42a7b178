// Package nn implements the building blocks of the attention-based translation model.
//
// This package provides:
//   - Parameter: named trainable matrix
//   - Initializers: IsotropicGaussian, Orthogonal, Constant
//   - Linear, Fork: affine projections
//   - LookupTable, LookupFeedback: embeddings with negative-id sentinels
//   - GRU: gated recurrent unit with an injectable initial-state strategy
//   - Bidirectional: forward and backward GRU sweeps joined per step
//   - SequenceContentAttention: masked additive attention
//   - Readout: maxout readout producing vocabulary logits
//   - SequenceGenerator: the decoder state machine (cost and generate modes)
//
// All activations are gonum dense matrices; sequences are time-major.
// Forward methods panic on shape contract violations; validation of user
// input happens one level up, in the model package.
package nn

// Module is the base interface for all components that own parameters.
type Module interface {
	// Parameters returns all trainable parameters, nested modules included.
	Parameters() []*Parameter
}

// CollectParameters concatenates the parameters of several modules in order.
func CollectParameters(modules ...Module) []*Parameter {
	var params []*Parameter
	for _, m := range modules {
		if m == nil {
			continue
		}
		params = append(params, m.Parameters()...)
	}
	return params
}
