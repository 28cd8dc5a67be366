// Package reporter provides progress reporting interfaces and implementations.
package reporter

import "time"

// HardwareSummary describes the machine the batch driver sized its worker
// pool against (§4.7/§4.8's parallel batch driver).
type HardwareSummary struct {
	Hostname      string
	LogicalCores  int
	PhysicalCores int
	Workers       int
}

// InitializationSummary describes the current file before its pipeline runs.
type InitializationSummary struct {
	InputFile    string
	OutputFile   string
	Duration     string
	Resolution   string
	DynamicRange string
}

// EncodingConfigSummary contains the parameter C3/C4 chose for one file's
// encode before the search begins.
type EncodingConfigSummary struct {
	Encoder            string
	Preset             string
	Tune               string
	Quality            string
	PixelFormat        string
	MatrixCoefficients string
	SVTAV1Params       string
}

// ProgressSnapshot contains encoding progress information, parsed from
// ffmpeg's stderr for video targets (§4.4's black-box encoder probes).
type ProgressSnapshot struct {
	CurrentFrame uint64
	TotalFrames  uint64
	Percent      float32
	Speed        float32
	FPS          float32
	ETA          time.Duration
	Bitrate      string
}

// ValidationSummary contains validation results.
type ValidationSummary struct {
	Passed bool
	Steps  []ValidationStep
}

// ValidationStep represents a single validation check.
type ValidationStep struct {
	Name    string
	Passed  bool
	Details string
}

// EncodingOutcome contains final encoding results, reported once per
// committed file.
type EncodingOutcome struct {
	InputFile    string
	OutputFile   string
	OriginalSize uint64
	EncodedSize  uint64
	TotalTime    time.Duration
	AverageSpeed float32
	OutputPath   string
}

// ReporterError contains error information.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// BatchStartInfo contains batch start metadata.
type BatchStartInfo struct {
	TotalFiles int
	FileList   []string
	OutputDir  string
}

// FileProgressContext contains current file index within a batch.
type FileProgressContext struct {
	CurrentFile int
	TotalFiles  int
}

// BatchSummary contains batch completion information.
type BatchSummary struct {
	SuccessfulCount       int
	TotalFiles            int
	TotalOriginalSize     uint64
	TotalEncodedSize      uint64
	TotalDuration         time.Duration
	AverageSpeed          float32
	FileResults           []FileResult
	ValidationPassedCount int
	ValidationFailedCount int
}

// FileResult contains per-file encoding result.
type FileResult struct {
	Filename  string
	Reduction float64
}

// StageProgress represents a generic stage update.
type StageProgress struct {
	Stage   string
	Percent float32
	Message string
	ETA     *time.Duration
}
