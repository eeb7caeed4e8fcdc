package metadata

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Label identifies an image inside a texture atlas. The zero Label means
// "no texture".
type Label uint64

// NewLabel derives a stable label from a name. Equal names always produce
// the same label.
func NewLabel(name string) Label {
	l := Label(xxhash.Sum64String(name))
	if l == 0 {
		l = 1
	}
	return l
}

func (l Label) IsZero() bool {
	return l == 0
}

func (l Label) String() string {
	return fmt.Sprintf("label(%016x)", uint64(l))
}
