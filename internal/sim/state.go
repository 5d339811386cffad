// Package sim orchestrates simulation runs: historical backtests and live
// paper-trading runners driven by a streaming feed.
package sim

// RunState is the lifecycle phase of a simulation run.
type RunState int32

const (
	StateInitialized RunState = iota
	StateRunning
	StateCompleted
	StateStopped
	StateFailed
)

// String returns the state name used in results and logs.
func (s RunState) String() string {
	switch s {
	case StateInitialized:
		return "INITIALIZED"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateStopped:
		return "STOPPED"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}
