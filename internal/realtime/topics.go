package realtime

const (
	// TopicTerminalActivity carries buffer store mutations.
	TopicTerminalActivity = "terminal.activity"
	// TopicSuggestions carries completed fix requests.
	TopicSuggestions = "quickfix.suggestions"
	// TopicDispatch carries chosen fixes for the host to insert or run.
	TopicDispatch = "quickfix.dispatch"
)

func IsSupportedTopic(topic string) bool {
	switch topic {
	case TopicTerminalActivity, TopicSuggestions, TopicDispatch:
		return true
	default:
		return false
	}
}
