package assembly

import (
	"errors"
	"fmt"

	"github.com/notargets/femassemble/coefficient"
	"github.com/notargets/femassemble/mesh"
)

// Every failure aborts the whole call; no partial system is returned.
var (
	ErrShapeMismatch     = errors.New("assembly: shape mismatch")
	ErrInvalidMesh       = errors.New("assembly: invalid mesh")
	ErrBadDOFMap         = errors.New("assembly: malformed DOF map")
	ErrDegenerateElement = errors.New("assembly: degenerate element")
	ErrDegenerateEdge    = errors.New("assembly: degenerate edge")
)

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDegenerateEdge):
		return err
	case errors.Is(err, mesh.ErrBadDOFMap):
		return fmt.Errorf("%w: %w", ErrBadDOFMap, err)
	case errors.Is(err, mesh.ErrDegenerateElement):
		return fmt.Errorf("%w: %w", ErrDegenerateElement, err)
	case errors.Is(err, mesh.ErrShapeMismatch), errors.Is(err, coefficient.ErrShapeMismatch),
		errors.Is(err, coefficient.ErrUnset):
		return fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidMesh, err)
}
