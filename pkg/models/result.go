package models

// ResultStatus is the binary outcome every task handler reports.
type ResultStatus string

const (
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusFailed  ResultStatus = "failed"
)

// TaskResult is the normalized shape every handler, real or test double,
// must produce. Handler errors are folded into Error/Logs by the dispatcher;
// they never escape as raw panics or returned errors.
type TaskResult struct {
	Status ResultStatus   `json:"status"`
	Output map[string]any `json:"output"`
	Logs   string         `json:"logs,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// FailedResult builds a failed TaskResult from an error message.
func FailedResult(errMsg, logs string) TaskResult {
	return TaskResult{
		Status: ResultStatusFailed,
		Output: make(map[string]any),
		Logs:   logs,
		Error:  errMsg,
	}
}

// SuccessResult builds a successful TaskResult.
func SuccessResult(output map[string]any, logs string) TaskResult {
	if output == nil {
		output = make(map[string]any)
	}

	return TaskResult{
		Status: ResultStatusSuccess,
		Output: output,
		Logs:   logs,
	}
}
