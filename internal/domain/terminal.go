package domain

// Handle identifies one terminal instance. It is assigned by the host
// editor and is opaque to us: equality is identity, nothing else.
type Handle string

// CommandRecord describes one completed command as reported by the host's
// shell integration. A nil ExitCode means the exit status is unknown (for
// example when the shell itself exited), which is distinct from zero.
type CommandRecord struct {
	CommandLine      string
	WorkingDirectory string
	ExitCode         *int
	Output           string
}

// Failed reports whether the record is known to have failed. Records with
// an unknown exit status are not considered failures.
func (r CommandRecord) Failed() bool {
	return r.ExitCode != nil && *r.ExitCode != 0
}
