package tsl

// Status reports the outcome of a shader group or resolve operation.
type Status int

const (
	// Succeed means the operation completed.
	Succeed Status = iota

	// InvalidInput means an argument was nil or otherwise unusable.
	InvalidInput

	// InvalidShaderGroupTemplate means the group template was not in a
	// state that permits the operation, for example resolving a group
	// that was never sealed.
	InvalidShaderGroupTemplate

	// FunctionVerificationFailed means generated code did not pass
	// verification.
	FunctionVerificationFailed

	// ShaderGroupWithoutRoot means no root shader unit was set before
	// the group template was sealed.
	ShaderGroupWithoutRoot

	// ShaderGroupWithCycles means the unit dependency graph contains a
	// cycle.
	ShaderGroupWithCycles

	// UndefinedShaderUnit means a connection, init or exposure names a
	// unit the group does not contain.
	UndefinedShaderUnit

	// InvalidArgType means a connection or init does not match the
	// declared argument, in type or direction.
	InvalidArgType

	// ArgumentWithoutInitialization means an input argument is neither
	// connected, exposed nor given a default value.
	ArgumentWithoutInitialization
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Succeed:
		return "Succeed"
	case InvalidInput:
		return "InvalidInput"
	case InvalidShaderGroupTemplate:
		return "InvalidShaderGroupTemplate"
	case FunctionVerificationFailed:
		return "FunctionVerificationFailed"
	case ShaderGroupWithoutRoot:
		return "ShaderGroupWithoutRoot"
	case ShaderGroupWithCycles:
		return "ShaderGroupWithCycles"
	case UndefinedShaderUnit:
		return "UndefinedShaderUnit"
	case InvalidArgType:
		return "InvalidArgType"
	case ArgumentWithoutInitialization:
		return "ArgumentWithoutInitialization"
	default:
		return "Unknown"
	}
}
