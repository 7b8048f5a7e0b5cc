// Package jobs defines the River job kinds and how they are enqueued.
package jobs

// ProcessVideoKind is the River kind of ProcessVideoArgs.
const ProcessVideoKind = "process_video"

// ProcessVideoArgs asks a worker to run the highlight pipeline for one source.
type ProcessVideoArgs struct {
	// Source is a local path or an http(s) URL.
	Source string `json:"source"`
}

// Kind returns the job type identifier for River.
func (ProcessVideoArgs) Kind() string { return ProcessVideoKind }
