package signal

// Handler is implemented by types that handle one signal type with a method
// instead of a closure.
type Handler[T any] interface {
	On(sig T) error
}

// FromHandler creates a callback delivering signals of type T to h.On.
func FromHandler[T any](h Handler[T], opts ...CallbackOption) *Callback {
	if h == nil {
		panic(ErrNilHandler)
	}
	return NewCallback(h.On, opts...)
}
