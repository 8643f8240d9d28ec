package live

import (
	"sync/atomic"
	"time"

	"github.com/Chooks22/surrealism/pkg/surrealql"
)

// Sequence hands out variable prefixes for live queries sharing a
// connection. It starts at the current time in milliseconds so prefixes
// also differ from those of earlier connections to the same session.
type Sequence struct {
	n atomic.Uint64
}

func NewSequence() *Sequence {
	s := new(Sequence)
	s.n.Store(uint64(time.Now().UnixMilli()))
	return s
}

func (s *Sequence) Next() string {
	return surrealql.IndexToName64(s.n.Add(1))
}
