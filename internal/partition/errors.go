package partition

import (
	"fmt"

	"github.com/rickgao/fund-data/internal/model"
)

// WriteError reports a failed publish. The previously visible partition for
// the month, if any, is left untouched.
type WriteError struct {
	Month model.Month
	Op    string // create, write, sync, rename
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("partition %s: %s: %v", e.Month, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
