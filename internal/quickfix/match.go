package quickfix

import (
	"strings"
	"sync"

	"github.com/termfix/termfix/internal/domain"
)

// MatchContext snapshots one failed-command match: the command line, the
// rule's command-line captures, and any output captures with the lines
// they matched on.
type MatchContext struct {
	Handle          domain.Handle
	RuleID          string
	CommandLine     string
	CommandCaptures []string
	OutputCaptures  []string
	OutputLines     []string
}

// Matcher evaluates compiled failure rules against completed commands.
type Matcher struct {
	mu    sync.RWMutex
	rules []CompiledRule
}

func NewMatcher(cfg *RuleConfig) (*Matcher, error) {
	m := &Matcher{}
	if err := m.SetConfig(cfg); err != nil {
		return nil, err
	}
	return m, nil
}

// SetConfig replaces the rule set. The previous rules stay active if the
// new config does not compile.
func (m *Matcher) SetConfig(cfg *RuleConfig) error {
	rules, err := cfg.Compile()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.rules = rules
	m.mu.Unlock()
	return nil
}

// Match checks a completed command against the rules. Only commands that
// are known to have failed can match. The first enabled rule whose
// command pattern matches the command line and whose output pattern (if
// any) matches the output wins.
func (m *Matcher) Match(handle domain.Handle, record domain.CommandRecord) (MatchContext, bool) {
	if !record.Failed() || record.CommandLine == "" {
		return MatchContext{}, false
	}

	m.mu.RLock()
	rules := m.rules
	m.mu.RUnlock()

	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		cmdCaptures := rule.Command.FindStringSubmatch(record.CommandLine)
		if cmdCaptures == nil {
			continue
		}

		mc := MatchContext{
			Handle:          handle,
			RuleID:          rule.ID,
			CommandLine:     record.CommandLine,
			CommandCaptures: cmdCaptures,
		}

		if rule.Output != nil {
			outCaptures := rule.Output.FindStringSubmatch(record.Output)
			if outCaptures == nil {
				continue
			}
			mc.OutputCaptures = outCaptures
			mc.OutputLines = matchingLines(rule, record.Output)
		}

		return mc, true
	}

	return MatchContext{}, false
}

func matchingLines(rule CompiledRule, output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if rule.Output.MatchString(line) {
			lines = append(lines, line)
		}
	}
	return lines
}

// Tracker holds the most recent unresolved match. A new match overwrites
// the previous one unconditionally; reading does not clear the slot, so a
// second fix request without a new failure replays the same context.
type Tracker struct {
	mu     sync.Mutex
	latest *MatchContext
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Record(mc MatchContext) {
	t.mu.Lock()
	t.latest = &mc
	t.mu.Unlock()
}

func (t *Tracker) Latest() (MatchContext, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return MatchContext{}, false
	}
	return *t.latest, true
}
