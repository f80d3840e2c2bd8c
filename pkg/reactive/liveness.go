package reactive

// Liveness reports whether the consumer of a subscription is still relevant.
// It is supplied by the layer that owns the consumer; the kernel only asks.
type Liveness interface {
	Alive() bool
}

// LivenessFunc adapts a function to the Liveness interface.
type LivenessFunc func() bool

// Alive implements Liveness.
func (f LivenessFunc) Alive() bool {
	return f()
}

// Callback receives the new and the previous value of a cell.
type Callback func(newValue, oldValue any)
