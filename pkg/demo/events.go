// Package demo builds a small input-device signal graph on top of the
// dispatch core. It is what the sigslot host runs and what the topology
// endpoint describes.
package demo

import (
	"errors"
	"fmt"
	"time"

	"github.com/goclaw/sigslot/pkg/signal"
)

// Input is the root of the event hierarchy.
type Input struct {
	Device string
	Seq    uint64
	At     time.Time
}

// Mouse is an Input carrying a pointer position.
type Mouse struct {
	Input
	X, Y int
}

// Click is a Mouse event with a button.
type Click struct {
	Mouse
	Button int
}

// Key is an Input carrying a key code. Code 0 means the scan code could not
// be mapped.
type Key struct {
	Input
	Code rune
}

// ErrUnmappedKey is returned by the key handler for Code 0.
var ErrUnmappedKey = errors.New("unmapped key")

func (k *Key) String() string {
	if k.Code == 0 {
		return fmt.Sprintf("key#%d(?)", k.Seq)
	}
	return fmt.Sprintf("key#%d(%c)", k.Seq, k.Code)
}

// NewRegistry declares Click ⊑ Mouse ⊑ Input and Key ⊑ Input.
func NewRegistry() *signal.Registry {
	r := signal.NewRegistry()
	signal.MustDerive(r, func(m *Mouse) *Input { return &m.Input })
	signal.MustDerive(r, func(c *Click) *Mouse { return &c.Mouse })
	signal.MustDerive(r, func(k *Key) *Input { return &k.Input })
	return r
}
