package files

import (
	"errors"
	"fmt"

	"github.com/sheepe/pterogo/pkg/tree"
)

// ErrNotApplicable is the parent of ErrNotDirectory and ErrIsDirectory.
var ErrNotApplicable = errors.New("operation not applicable")

var (
	// ErrNotDirectory is returned by directory-only operations on a file.
	ErrNotDirectory = fmt.Errorf("%w: not a directory", ErrNotApplicable)
	// ErrIsDirectory is returned by file-only operations on a directory.
	ErrIsDirectory = fmt.Errorf("%w: is a directory", ErrNotApplicable)
)

// ErrInconsistent matches every *ConsistencyError.
var ErrInconsistent = errors.New("operation could not be completed")

// ConsistencyError is returned when the listing fetched after a mutation
// does not contain the entry the mutation should have produced. The remote
// effect may already have been applied.
type ConsistencyError struct {
	Op        string
	Directory string
	Name      string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s: %s: %q not found in %s", e.Op, ErrInconsistent, e.Name, tree.RootDisplay(e.Directory))
}

func (e *ConsistencyError) Is(target error) bool {
	return target == ErrInconsistent
}

// AsConsistency checks if an error is a ConsistencyError and returns it.
func AsConsistency(err error) (*ConsistencyError, bool) {
	var ce *ConsistencyError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
