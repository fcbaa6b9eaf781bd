package config

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"google.golang.org/grpc/codes"

	apperrors "github.com/louisbranch/arena/internal/platform/errors"
)

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// ExitCode maps a command error onto a process exit code: 0 for success or
// a help request, 2 for bad input, 3 for a replay that did not reproduce and
// 1 otherwise.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return 0
	}
	switch apperrors.CodeOf(err).GRPCCode() {
	case codes.InvalidArgument:
		return 2
	case codes.DataLoss:
		return 3
	}
	return 1
}
