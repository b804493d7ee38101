package domain

// RunStatus is the state of a load test run, read from the status marker file
// on the controller pod.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "RUNNING"
	RunStatusFinished RunStatus = "FINISHED"
	RunStatusError    RunStatus = "ERROR"
	RunStatusUnknown  RunStatus = "UNKNOWN"
)

// ParseRunStatus maps the raw marker file contents onto a RunStatus,
// defaulting to UNKNOWN for anything unrecognised.
func ParseRunStatus(raw string) RunStatus {
	switch RunStatus(raw) {
	case RunStatusRunning, RunStatusFinished, RunStatusError:
		return RunStatus(raw)
	default:
		return RunStatusUnknown
	}
}

// RunContext carries the parameters a load test topology is deployed with.
type RunContext struct {
	TestplanRepo  string
	MaxShards     int
	Threads       int
	LoopCount     int
	TargetBaseURL string
	Namespace     string
	HTTPPort      int
	RMIPort       int
}

const (
	AppLabel = "app"

	ControllerApp = "jmeter-master"
	WorkerApp     = "jmeter-slaves"

	ControllerContainer = "jmeter-master"

	WorkerStatefulSet = "jmeter-slaves"
)
