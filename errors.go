package simcore

import "fmt"

// category is the short machine-readable prefix every public error carries,
// so callers can branch on failure class without string-matching the full
// message.
type category string

const (
	categoryValidation   category = "validation"
	categoryApply        category = "structural_apply"
	categoryStaleHandle  category = "stale_handle"
	categoryAccess       category = "access_violation"
	categoryTransaction  category = "transaction"
	categoryRing         category = "ring_reset"
	categoryLockedWorld  category = "world_locked"
	categoryNonCopyable  category = "non_copyable_component"
	categoryDuplicateMut category = "duplicate_mut_access"
)

// ValidationError is raised from playback before any command in the phase
// has been applied: a structural command failed its pre-check (dead
// entity, unknown component).
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", categoryValidation, e.Reason)
}

// StructuralApplyError wraps an error raised mid-apply; the command buffer
// has already rolled the world back to its pre-playback state by the time
// this is returned to the caller.
type StructuralApplyError struct {
	Cause error
}

func (e StructuralApplyError) Error() string {
	return fmt.Sprintf("%s: %v", categoryApply, e.Cause)
}

func (e StructuralApplyError) Unwrap() error { return e.Cause }

// StaleHandleError reports an operation against an entity handle whose
// generation no longer matches the live entity at that index.
type StaleHandleError struct {
	Handle Entity
}

func (e StaleHandleError) Error() string {
	return fmt.Sprintf("%s: entity %v is not alive", categoryStaleHandle, e.Handle)
}

// AccessViolation is raised only when Config.DebugAccessChecks is set: a
// query touched a component outside the running system's declared
// reads/writes. ColdSparse access is exempt by design.
type AccessViolation struct {
	System    string
	Component ComponentID
}

func (e AccessViolation) Error() string {
	return fmt.Sprintf("%s: system %q touched component %d outside its declared access", categoryAccess, e.System, e.Component)
}

// TransactionCycleError reports that a journal's dependency graph could not
// be topologically ordered.
type TransactionCycleError struct {
	Reason string
}

func (e TransactionCycleError) Error() string {
	return fmt.Sprintf("%s: %s", categoryTransaction, e.Reason)
}

// DependencyError reports a journal entry that depends on an id unknown to
// the transaction, or a duplicate entry id.
type DependencyError struct {
	Reason string
}

func (e DependencyError) Error() string {
	return fmt.Sprintf("%s: %s", categoryTransaction, e.Reason)
}

// RingResetError is the core package's ring-reset error category. The
// snapshot ring returns its own snapshot.RingResetError to a producer
// released by Reset; no code in this module returns this type.
type RingResetError struct{}

func (e RingResetError) Error() string {
	return fmt.Sprintf("%s: ring was reset while waiting", categoryRing)
}

// LockedWorldError reports a structural mutation attempted directly
// against a world that is currently locked for system iteration, instead
// of going through a command buffer.
type LockedWorldError struct {
	Op string
}

func (e LockedWorldError) Error() string {
	return fmt.Sprintf("%s: %s attempted while world is locked for iteration", categoryLockedWorld, e.Op)
}

// NonCopyableComponentError is raised at component registration time when
// the caller's type cannot be safely value-copied, which the structural
// command buffer's copy-on-write undo snapshots require.
type NonCopyableComponentError struct {
	TypeName string
}

func (e NonCopyableComponentError) Error() string {
	return fmt.Sprintf("%s: component %s is not copy-constructible", categoryNonCopyable, e.TypeName)
}

// DuplicateMutAccessError is raised when a query's argument list requests
// AccessMut on the same component type more than once, which would hand
// the caller two live *Ref[T] aliasing the same column.
type DuplicateMutAccessError struct {
	Component ComponentID
}

func (e DuplicateMutAccessError) Error() string {
	return fmt.Sprintf("%s: component %d requested as Mut more than once in the same query", categoryDuplicateMut, e.Component)
}
