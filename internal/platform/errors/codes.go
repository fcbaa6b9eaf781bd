// Package errors provides structured, coded errors for the battle backend.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Battle resolution errors
	CodeBattlePrecondition  Code = "BATTLE_PRECONDITION"
	CodeBattleCascadeLimit  Code = "BATTLE_CASCADE_LIMIT"
	CodeBattleEvaluation    Code = "BATTLE_EVALUATION"
	CodeBattleOver          Code = "BATTLE_OVER"
	CodeBattleAborted       Code = "BATTLE_ABORTED"
	CodeBattleInvalidRoster Code = "BATTLE_INVALID_ROSTER"

	// Content errors
	CodeContentInvalid Code = "CONTENT_INVALID"

	// Storage errors
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeInvalidFilter Code = "INVALID_FILTER"

	// Replay errors
	CodeReplayMismatch   Code = "REPLAY_MISMATCH"
	CodeReplayCorruptLog Code = "REPLAY_CORRUPT_LOG"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - content and roster the engine refuses to run
	case CodeContentInvalid,
		CodeBattleInvalidRoster,
		CodeInvalidFilter:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeBattlePrecondition,
		CodeBattleOver:
		return codes.FailedPrecondition

	// Aborted - the battle stopped without a trustworthy outcome
	case CodeBattleCascadeLimit,
		CodeBattleAborted:
		return codes.Aborted

	// DataLoss - stored logs that no longer reproduce
	case CodeReplayMismatch,
		CodeReplayCorruptLog:
		return codes.DataLoss

	case CodeNotFound:
		return codes.NotFound

	case CodeAlreadyExists:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}
