package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	InvalidPayload    Code = "invalid_payload"
	UnknownCapability Code = "unknown_capability"
	HALNotReady       Code = "hal_not_ready"
	InvalidTopic      Code = "invalid_topic"

	UnknownBus Code = "unknown_bus"
	BusInUse   Code = "bus_in_use"
	UnknownPin Code = "unknown_pin"
	PinInUse   Code = "pin_in_use"
	Timeout    Code = "timeout"

	Error Code = "error" // generic fallback

	// Control-surface / config-lifecycle codes (kernel §6).
	InvalidRequest           Code = "INVALID_REQUEST"
	UnsupportedSchemaVersion Code = "UNSUPPORTED_SCHEMA_VERSION"
	ValidationFailed         Code = "VALIDATION_FAILED"
	CommitFailed             Code = "COMMIT_FAILED"
	RestoreFailed            Code = "RESTORE_FAILED"
	NotFound                 Code = "NOT_FOUND"
	ForbiddenInMode          Code = "FORBIDDEN_IN_MODE"
	Unauthorized             Code = "UNAUTHORIZED"
	Forbidden                Code = "FORBIDDEN"
	InternalError            Code = "INTERNAL_ERROR"

	// Commit pipeline validation codes (kernel §4.8).
	VCFG002 Code = "V-CFG-002" // duplicate cardId
	VCFG003 Code = "V-CFG-003" // reference does not resolve
	VCFG004 Code = "V-CFG-004" // required field / non-negativity
	VCFG005 Code = "V-CFG-005" // scan interval out of bounds
	VCFG006 Code = "V-CFG-006" // condition block shape (clauseB presence)
	VCFG007 Code = "V-CFG-007" // condition block shape (combiner/operator legality)
	VCFG008 Code = "V-CFG-008" // AI rejects set/reset
	VCFG009 Code = "V-CFG-009" // RTC rejects set/reset
	VCFG010 Code = "V-CFG-010" // MATH operator membership
	VCFG011 Code = "V-CFG-011" // clamp/range sanity
	VCFG012 Code = "V-CFG-012" // binding type/range/unit compatibility
	VCFG013 Code = "V-CFG-013" // topology cycle
	VCFG014 Code = "V-CFG-014" // ownership violation
	VCFG015 Code = "V-CFG-015" // wifi.staOnly must be true
	VCFG017 Code = "V-CFG-017" // DI (also MATH, RTC) family has zero capacity in the hardware profile
	VCFG018 Code = "V-CFG-018" // AI family has zero capacity in the hardware profile
	VCFG019 Code = "V-CFG-019" // DO/SIO family has zero capacity in the hardware profile
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps low-level driver errors to a Code.
// Extend the heuristics per platform/driver.
func MapDriverErr(err error) Code {
	if err == nil {
		return OK
	}
	return Error
}
