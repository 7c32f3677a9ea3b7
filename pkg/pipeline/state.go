package pipeline

type State int

const (
	Unconfigured State = iota
	Configured
	Streaming
	Stopped
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configured:
		return "configured"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}
