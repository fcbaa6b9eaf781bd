package relay

import (
	"context"
	"errors"
	"strconv"

	"google.golang.org/grpc/status"

	"github.com/louisbranch/arena/internal/battle"
	"github.com/louisbranch/arena/internal/battle/expr"
	"github.com/louisbranch/arena/internal/battle/filter"
	"github.com/louisbranch/arena/internal/battle/narrate"
	"github.com/louisbranch/arena/internal/battle/replay"
	"github.com/louisbranch/arena/internal/battle/storage"
	apperrors "github.com/louisbranch/arena/internal/platform/errors"
)

// Classify maps a battle, storage or replay failure onto a coded error.
// Errors that already carry a code are returned unchanged.
func Classify(err error) *apperrors.Error {
	if err == nil {
		return nil
	}
	var coded *apperrors.Error
	if errors.As(err, &coded) {
		return coded
	}

	var (
		cascade      *battle.CascadeError
		precondition *battle.PreconditionError
		validation   *battle.ValidationError
		evaluation   *expr.EvaluationError
	)
	switch {
	case errors.As(err, &cascade):
		return apperrors.Wrap(apperrors.CodeBattleCascadeLimit, err).With("limit", strconv.Itoa(cascade.Limit))
	case errors.As(err, &precondition):
		coded := apperrors.Wrap(apperrors.CodeBattlePrecondition, err)
		if precondition.Effect.Effect != nil {
			coded = coded.With("effect", precondition.Effect.Effect.Kind().String())
		}
		if t := precondition.Effect.Ctx.Target; t != 0 {
			coded = coded.With("target", t.String())
		}
		return coded
	case errors.As(err, &validation):
		return apperrors.Wrap(apperrors.CodeContentInvalid, err).With("subject", validation.Subject)
	case errors.As(err, &evaluation):
		return apperrors.Wrap(apperrors.CodeBattleEvaluation, err).With("op", evaluation.Op.String())
	}
	for _, c := range sentinelCodes {
		if errors.Is(err, c.err) {
			return apperrors.Wrap(c.code, err)
		}
	}
	return apperrors.Wrap(apperrors.CodeUnknown, err)
}

// sentinelCodes is checked in order after the typed errors.
var sentinelCodes = []struct {
	err  error
	code apperrors.Code
}{
	{battle.ErrInvalidContent, apperrors.CodeContentInvalid},
	{battle.ErrEmptyRoster, apperrors.CodeBattleInvalidRoster},
	{battle.ErrBattleOver, apperrors.CodeBattleOver},
	{context.Canceled, apperrors.CodeBattleAborted},
	{context.DeadlineExceeded, apperrors.CodeBattleAborted},
	{storage.ErrNotFound, apperrors.CodeNotFound},
	{filter.ErrInvalidFilter, apperrors.CodeInvalidFilter},
	{storage.ErrAlreadyExists, apperrors.CodeAlreadyExists},
	{replay.ErrMismatch, apperrors.CodeReplayMismatch},
	{replay.ErrCorruptLog, apperrors.CodeReplayCorruptLog},
}

// ErrorStatus converts err to a gRPC status whose localized message comes
// from the catalog in the closest supported locale. A nil catalog leaves the
// user message empty.
func ErrorStatus(err error, c *narrate.Catalog, locale string) *status.Status {
	coded := Classify(err)
	if coded == nil {
		return nil
	}
	if c == nil {
		return coded.ToGRPCStatus(locale, "")
	}
	p, tag := c.Printer(locale)
	return coded.ToGRPCStatus(tag.String(), p.Sprintf("error."+string(coded.Code)))
}
