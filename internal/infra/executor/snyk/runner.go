package snyk

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	domain "github.com/bryanwahyu/fleetscan/internal/domain/scans"
)

// Snyk CLI exit codes, from `snyk container test --help`:
//
//	0: success, no vulnerabilities found
//	1: action_needed, vulnerabilities found
//	2: failure, try to re-run command
//	3: failure, no supported projects detected
const (
	exitClean      = 0
	exitVulnsFound = 1
	exitRerun      = 2
)

// Runner executes one container scan per call via the snyk CLI.
// It implements domain.Executor: every terminal condition comes back as a
// ScanOutcome value, never as an error.
type Runner struct {
	Bin string // snyk executable; defaults to "snyk" on PATH
	Org string // optional snyk organisation
}

func NewRunner(bin, org string) *Runner {
	if bin == "" {
		bin = "snyk"
	}
	return &Runner{Bin: bin, Org: org}
}

func (r *Runner) Execute(ctx context.Context, image domain.ImageRef, timeout time.Duration) domain.ScanOutcome {
	started := time.Now()
	cctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := []string{"container", "test", "--json"}
	if r.Org != "" {
		args = append(args, "--org="+r.Org)
	}
	args = append(args, string(image))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cctx, r.Bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	out := domain.ScanOutcome{
		Image:      image,
		Backend:    "snyk",
		StartedAt:  started,
		FinishedAt: time.Now(),
	}

	if cctx.Err() != nil {
		// subprocess was killed; partial output is not retained
		out.Status = domain.StatusTimeout
		out.ErrorDetail = cctx.Err().Error()
		return out
	}

	exitCode := 0
	if runErr != nil {
		ee, ok := runErr.(*exec.ExitError)
		if !ok {
			// spawn failure (binary missing etc), not retryable
			out.Status = domain.StatusToolError
			out.ErrorDetail = runErr.Error()
			return out
		}
		exitCode = ee.ExitCode()
	}

	switch exitCode {
	case exitClean, exitVulnsFound:
		// the tool signals findings via exit code, not failure
		if !json.Valid(stdout.Bytes()) {
			out.Status = domain.StatusToolError
			out.ErrorDetail = "unparseable scan output: " + stderr.String()
			return out
		}
		out.Status = domain.StatusOK
		out.RawReport = stdout.Bytes()
	case exitRerun:
		// the tool's own transient signal: network/rate-limit trouble
		// reaching the scanning backend
		out.Status = domain.StatusToolError
		out.ErrorDetail = stderr.String()
		out.Transient = true
	default:
		out.Status = domain.StatusToolError
		out.ErrorDetail = stderr.String()
	}
	return out
}
