package kernel

import "advancedtimer/errcode"

// CommandName enumerates the runtime control surface's accepted command
// kinds (§4.9). applyCommand rejects any other value with
// errcode.InvalidRequest.
type CommandName uint8

const (
	CmdSetRunMode CommandName = iota
	CmdStepOnce
	CmdSetBreakpoint
	CmdContinue
	CmdSetInputForce
	CmdSetOutputMask
	CmdSetOutputMaskGlobal
)

// Command is one runtime-control request, submitted through the bounded
// command queue and resolved into a CommandResult.
type Command struct {
	RequestID string
	Name      CommandName

	RunMode RunMode // CmdSetRunMode

	CardID      CardID     // CmdSetBreakpoint, CmdSetInputForce, CmdSetOutputMask
	Breakpoint  bool       // CmdSetBreakpoint
	Force       InputForce // CmdSetInputForce
	Masked      bool       // CmdSetOutputMask, CmdSetOutputMaskGlobal
}

// CommandStatus mirrors §6's command_result status field.
type CommandStatus uint8

const (
	StatusSuccess CommandStatus = iota
	StatusFailure
)

// CommandResult is published once a Command is resolved (§6). It carries
// the snapshot revision the change is guaranteed visible by, per the
// "submitted before revision R published, visible no later than R+1"
// ordering guarantee (§5) — the scheduler stamps this with the revision
// about to be published in the scan during which the command was drained.
type CommandResult struct {
	RequestID        string
	Status           CommandStatus
	ErrorCode        errcode.Code
	Message          string
	SnapshotRevision uint64
}

// applyCommand validates and applies cmd against the live graph and
// scheduler state, called only from the kernel's scan loop (drainCommands)
// so it never races card evaluation.
func (s *Scheduler) applyCommand(cmd Command) CommandResult {
	res := CommandResult{RequestID: cmd.RequestID, Status: StatusSuccess}

	switch cmd.Name {
	case CmdSetRunMode:
		if cmd.RunMode != RunNormal && cmd.RunMode != RunStep && cmd.RunMode != RunBreakpoint {
			return fail(res, errcode.InvalidParams, "unsupported run mode")
		}
		s.runMode = cmd.RunMode
		s.stepPending = false
		s.breakpointPaused = false
		s.breakpointAck = false
		s.cursor = 0

	case CmdStepOnce:
		if s.runMode != RunStep {
			return fail(res, errcode.ForbiddenInMode, "step_once requires STEP run mode")
		}
		s.stepPending = true

	case CmdSetBreakpoint:
		c := s.graph.CardByID(cmd.CardID)
		if c == nil {
			return fail(res, errcode.NotFound, "unknown cardId")
		}
		if s.breakpoints == nil {
			s.breakpoints = make(map[CardID]bool)
		}
		s.breakpoints[cmd.CardID] = cmd.Breakpoint

	case CmdContinue:
		if s.runMode != RunBreakpoint {
			return fail(res, errcode.ForbiddenInMode, "continue requires BREAKPOINT run mode")
		}
		if !s.breakpointPaused {
			return fail(res, errcode.ForbiddenInMode, "continue requires a halted breakpoint")
		}
		// The card at the cursor is the one we halted in front of; mark
		// it acknowledged so runScan evaluates it once and proceeds,
		// instead of re-halting on the same breakpoint immediately.
		s.breakpointPaused = false
		s.breakpointAck = true

	case CmdSetInputForce:
		c := s.graph.CardByID(cmd.CardID)
		if c == nil {
			return fail(res, errcode.NotFound, "unknown cardId")
		}
		if c.Type != CardDI && c.Type != CardAI {
			return fail(res, errcode.Forbidden, "input force only applies to DI/AI cards")
		}
		s.testMode.InputsForced[cmd.CardID] = cmd.Force

	case CmdSetOutputMask:
		c := s.graph.CardByID(cmd.CardID)
		if c == nil {
			return fail(res, errcode.NotFound, "unknown cardId")
		}
		switch c.Type {
		case CardDO:
			c.DORun.Masked = cmd.Masked
		case CardSIO:
			if c.SIO.WritePolicy == WriteForbidden {
				return fail(res, errcode.Forbidden, "card write policy forbids external mask")
			}
			// SIO has no physical output to mask. The flag is recorded in
			// SIORun.masked only: evalSIO and graphReader do not read it,
			// so PhysicalState and what other cards see are unchanged.
			c.SIORun.masked = cmd.Masked
		default:
			return fail(res, errcode.Forbidden, "output mask only applies to DO/SIO cards")
		}

	case CmdSetOutputMaskGlobal:
		s.testMode.OutputMaskGlobal = cmd.Masked

	default:
		return fail(res, errcode.InvalidRequest, "unknown command")
	}

	return res
}

func fail(res CommandResult, code errcode.Code, msg string) CommandResult {
	res.Status = StatusFailure
	res.ErrorCode = code
	res.Message = msg
	return res
}
