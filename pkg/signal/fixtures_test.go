package signal

import "testing"

type inputEvent struct {
	Source string
}

type mouseEvent struct {
	inputEvent
	X, Y int
}

type clickEvent struct {
	mouseEvent
	Button int
}

type keyEvent struct {
	inputEvent
	Code rune
}

type tickEvent struct {
	Seq int
}

// newInputRegistry builds click ⊑ mouse ⊑ input and key ⊑ input.
func newInputRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if _, err := Derive(r, func(m *mouseEvent) *inputEvent { return &m.inputEvent }); err != nil {
		t.Fatalf("derive mouse: %v", err)
	}
	if _, err := Derive(r, func(c *clickEvent) *mouseEvent { return &c.mouseEvent }); err != nil {
		t.Fatalf("derive click: %v", err)
	}
	if _, err := Derive(r, func(k *keyEvent) *inputEvent { return &k.inputEvent }); err != nil {
		t.Fatalf("derive key: %v", err)
	}
	return r
}

// recorder collects handler names in call order.
type recorder struct {
	calls []string
}

func record[T any](r *recorder, name string) func(T) error {
	return func(T) error {
		r.calls = append(r.calls, name)
		return nil
	}
}

func (r *recorder) count(name string) int {
	n := 0
	for _, c := range r.calls {
		if c == name {
			n++
		}
	}
	return n
}

// holder is large and holds a pointer so it is never tiny-allocated.
type holder struct {
	name string
	pad  [64]byte
}
