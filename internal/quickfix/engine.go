// Package quickfix turns failed-command matches into ranked fix
// suggestions. The pipeline extracts file references mentioned by the
// failure, verifies which exist, builds a prompt around the failed
// command, and parses the backend's structured response.
package quickfix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/termfix/termfix/internal/buffer"
	"github.com/termfix/termfix/internal/domain"
	"github.com/termfix/termfix/internal/llm"
)

// ErrCancelled means an in-flight fix request was aborted, either by the
// operator or by a newer request superseding it.
var ErrCancelled = errors.New("fix request cancelled")

const maxFileRefs = 16

// FailureKind is the wire-level classification of a failed fix request.
type FailureKind string

const (
	FailureNone               FailureKind = ""
	FailureBackendUnavailable FailureKind = "backend_unavailable"
	FailureCancelled          FailureKind = "cancelled"
	FailureMalformedResponse  FailureKind = "malformed_response"
	FailureInternal           FailureKind = "internal"
)

// KindOf classifies an engine error.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return FailureCancelled
	case errors.Is(err, llm.ErrUnavailable):
		return FailureBackendUnavailable
	case errors.Is(err, ErrMalformedResponse):
		return FailureMalformedResponse
	default:
		return FailureInternal
	}
}

// FileChecker reports whether a path candidate exists. A check error is
// folded into "missing" by the engine: false negatives are cheaper for
// fix generation than false positives.
type FileChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// OSFileChecker checks the local filesystem.
type OSFileChecker struct{}

func (OSFileChecker) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Result is a successful pipeline run. Suggestions are in discovery
// order; ranking happens in the presenter.
type Result struct {
	RequestID   string
	Suggestions []domain.CommandSuggestion
	Existing    []string
	Missing     []string
}

// Engine runs the suggestion pipeline. One request is in flight at a
// time: starting a new one cancels its predecessor.
type Engine struct {
	extractor llm.Backend
	suggester llm.Backend
	files     FileChecker
	buffers   *buffer.Store

	mu       sync.Mutex
	cancel   context.CancelFunc
	activeID string
}

func NewEngine(extractor, suggester llm.Backend, files FileChecker, buffers *buffer.Store) *Engine {
	if files == nil {
		files = OSFileChecker{}
	}
	return &Engine{
		extractor: extractor,
		suggester: suggester,
		files:     files,
		buffers:   buffers,
	}
}

// Suggest runs the full pipeline for one match under a fresh request ID.
// The error, if any, classifies via KindOf; no suggestions are ever
// returned alongside an error.
func (e *Engine) Suggest(ctx context.Context, match MatchContext) (Result, error) {
	requestID := uuid.NewString()

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.cancel = cancel
	e.activeID = requestID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		if e.activeID == requestID {
			e.cancel = nil
			e.activeID = ""
		}
		e.mu.Unlock()
		cancel()
	}()

	refs := e.extractFileRefs(ctx, match)
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	existing, missing := e.verifyFiles(ctx, refs)
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	prompt := e.buildPrompt(match, existing, missing)

	raw, err := e.suggester.Complete(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return Result{}, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		if errors.Is(err, llm.ErrUnavailable) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("suggestion backend: %w", err)
	}
	// Cancellation wins over a response that raced in.
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	suggestions, err := ParseSuggestions(raw)
	if err != nil {
		return Result{}, err
	}

	return Result{
		RequestID:   requestID,
		Suggestions: suggestions,
		Existing:    existing,
		Missing:     missing,
	}, nil
}

// Cancel aborts the in-flight request, if any.
func (e *Engine) Cancel() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()
}

// extractFileRefs asks the extraction backend for path candidates
// mentioned by the failure. Extraction is advisory: a failing or absent
// backend yields no candidates rather than failing the request.
func (e *Engine) extractFileRefs(ctx context.Context, match MatchContext) []string {
	var b strings.Builder
	b.WriteString("A shell command failed. List every file path mentioned by the command or its output, one per line. Reply NONE if there are none.\n\n")
	fmt.Fprintf(&b, "Command: %s\n", match.CommandLine)
	if len(match.OutputLines) > 0 {
		b.WriteString("Output:\n")
		for _, line := range match.OutputLines {
			fmt.Fprintf(&b, "%s\n", line)
		}
	}

	raw, err := e.extractor.Complete(ctx, b.String())
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var refs []string
	for _, line := range strings.Split(raw, "\n") {
		ref := strings.Trim(strings.TrimSpace(line), "`'\"")
		if ref == "" || strings.EqualFold(ref, "none") {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
		if len(refs) == maxFileRefs {
			break
		}
	}
	return refs
}

// verifyFiles partitions candidates into existing and missing. Checks run
// concurrently and all complete, error paths included, before the prompt
// is built.
func (e *Engine) verifyFiles(ctx context.Context, refs []string) (existing, missing []string) {
	if len(refs) == 0 {
		return nil, nil
	}

	exists := make([]bool, len(refs))
	var wg sync.WaitGroup
	for i, ref := range refs {
		wg.Add(1)
		go func(i int, ref string) {
			defer wg.Done()
			ok, err := e.files.Exists(ctx, ref)
			exists[i] = err == nil && ok
		}(i, ref)
	}
	wg.Wait()

	for i, ref := range refs {
		if exists[i] {
			existing = append(existing, ref)
		} else {
			missing = append(missing, ref)
		}
	}
	return existing, missing
}

func (e *Engine) buildPrompt(match MatchContext, existing, missing []string) string {
	var b strings.Builder
	b.WriteString("The following shell command failed:\n\n")
	fmt.Fprintf(&b, "    %s\n\n", match.CommandLine)

	if len(match.OutputLines) > 0 {
		b.WriteString("Relevant output lines:\n")
		for _, line := range match.OutputLines {
			fmt.Fprintf(&b, "    %s\n", line)
		}
		b.WriteString("\n")
	}

	if e.buffers != nil {
		if recent := e.buffers.JoinedOutput(match.Handle, 0); recent != "" {
			b.WriteString("Recent terminal output:\n")
			b.WriteString(recent)
			if !strings.HasSuffix(recent, "\n") {
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	if len(existing) > 0 {
		fmt.Fprintf(&b, "These referenced files exist: %s\n", strings.Join(existing, ", "))
	}
	if len(missing) > 0 {
		fmt.Fprintf(&b, "These referenced files do NOT exist: %s\n", strings.Join(missing, ", "))
	}
	if len(existing) > 0 || len(missing) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(`Suggest commands that would fix the failure. Respond with a JSON array of objects with fields "command", "description", and "relevance" (one of "high", "medium", "low"). When a command needs a user-supplied value, write the parameter as {placeholder}.`)
	return b.String()
}
