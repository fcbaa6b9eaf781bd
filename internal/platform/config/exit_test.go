package config_test

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/louisbranch/arena/internal/platform/config"
	apperrors "github.com/louisbranch/arena/internal/platform/errors"
)

// TestExitf_ExitsWithCode1 runs Exitf in a subprocess since os.Exit cannot
// be intercepted in-process.
func TestExitf_ExitsWithCode1(t *testing.T) {
	if os.Getenv("TEST_EXITF_SUBPROCESS") == "1" {
		config.Exitf("battle: %s", "scenario missing")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitf_ExitsWithCode1$")
	cmd.Env = append(os.Environ(), "TEST_EXITF_SUBPROCESS=1")

	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("exit code = %d, want 1", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), "battle: scenario missing") {
		t.Fatalf("output = %q, want reported message", string(out))
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "help", err: fmt.Errorf("parse: %w", flag.ErrHelp), want: 0},
		{name: "content", err: apperrors.New(apperrors.CodeContentInvalid, "bad unit"), want: 2},
		{name: "roster", err: fmt.Errorf("run: %w", apperrors.New(apperrors.CodeBattleInvalidRoster, "empty")), want: 2},
		{name: "replay", err: apperrors.New(apperrors.CodeReplayMismatch, "diverged"), want: 3},
		{name: "cascade", err: apperrors.New(apperrors.CodeBattleCascadeLimit, "loop"), want: 1},
		{name: "plain", err: errors.New("boom"), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := config.ExitCode(tt.err); got != tt.want {
				t.Fatalf("ExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}
