package playerstate

import (
	"errors"
	"fmt"
)

var (
	ErrRegistryFrozen     = errors.New("registry is frozen")
	ErrDuplicateTemplate  = errors.New("duplicate template name")
	ErrTooManyTemplates   = errors.New("too many templates")
	ErrInvalidDefinition  = errors.New("invalid template definition")
	ErrUnknownTemplate    = errors.New("unknown template")
	ErrAmbiguousType      = errors.New("go type registered under several templates")
	ErrDuplicateParent    = errors.New("state already has a parent")
	ErrNotComposite       = errors.New("only composite states may declare children")
	ErrCycle              = errors.New("state hierarchy contains a cycle")
	ErrNoCommonAncestor   = errors.New("interrupt pair shares no exclusive ancestor")
	ErrDuplicateInterrupt = errors.New("interrupt already registered")
	ErrInterruptLineage   = errors.New("interrupter and target are on one lineage")
	ErrIndexRange         = errors.New("state index out of range")
	ErrNotBuilt           = errors.New("registry has not been built")
	ErrEntityExists       = errors.New("entity already attached")
	ErrUnknownEntity      = errors.New("unknown entity")
	ErrNotReconciled      = errors.New("net table not reconciled")
	ErrNetID              = errors.New("invalid net id")
	ErrNetTable           = errors.New("invalid net table")
	ErrTagMissing         = errors.New("tag key missing")
	ErrTagType            = errors.New("tag value has the wrong type")
)

// BuildError reports a fatal content configuration mistake found while building the
// template graph.
type BuildError struct {
	Op       string // phase: "register", "children", "interrupts", "hooks"
	Template string
	Other    string
	Err      error
}

func (e *BuildError) Error() string {
	if e.Other != "" {
		return fmt.Sprintf("build %s: %s -> %s: %v", e.Op, e.Template, e.Other, e.Err)
	}
	return fmt.Sprintf("build %s: %s: %v", e.Op, e.Template, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ContractError is raised (via panic) when code misuses the runtime in a way that cannot
// be reported through a return value, e.g. activating a state that is not a child.
type ContractError struct {
	Op  string
	Msg string
}

func (e *ContractError) Error() string {
	return "playerstate: " + e.Op + ": " + e.Msg
}

func contractPanic(op, format string, args ...any) {
	panic(&ContractError{Op: op, Msg: fmt.Sprintf(format, args...)})
}
