package watcher

import "encoding/json"

// Target represents one entry of the inspector /json/list endpoint
type Target struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Request is a control protocol command
type Request struct {
	ID     int64       `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// Response is a control protocol reply or notification
type Response struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is a control protocol error reply
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CoverageRange is a source range with its execution count
type CoverageRange struct {
	StartOffset int `json:"startOffset"`
	EndOffset   int `json:"endOffset"`
	Count       int `json:"count"`
}

// FunctionCoverage reports one function; ranges[0] spans the whole function
type FunctionCoverage struct {
	FunctionName    string          `json:"functionName"`
	Ranges          []CoverageRange `json:"ranges"`
	IsBlockCoverage bool            `json:"isBlockCoverage"`
}

// Hits returns the function execution count
func (f *FunctionCoverage) Hits() int {
	if len(f.Ranges) == 0 {
		return 0
	}
	return f.Ranges[0].Count
}

// ScriptCoverage reports the functions of one script
type ScriptCoverage struct {
	ScriptID  string             `json:"scriptId"`
	URL       string             `json:"url"`
	Functions []FunctionCoverage `json:"functions"`
}

// CoverageSnapshot is the result of Profiler.takePreciseCoverage
type CoverageSnapshot struct {
	Result    []ScriptCoverage `json:"result"`
	Timestamp float64          `json:"timestamp,omitempty"`
}

// Control protocol methods
const (
	MethodProfilerEnable      = "Profiler.enable"
	MethodDebuggerEnable      = "Debugger.enable"
	MethodDebuggerResume      = "Debugger.resume"
	MethodStartCoverage       = "Profiler.startPreciseCoverage"
	MethodTakePreciseCoverage = "Profiler.takePreciseCoverage"
)

// startCoverageParams requests per call counts with per function detail
var startCoverageParams = map[string]interface{}{"callCount": true, "detailed": true}
