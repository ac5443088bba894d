package exitcodes

// Exit codes for dirsweep
// These codes form the operational contract with scripts and operators
const (
	Success       = 0 // Every path was deleted or skipped
	PathErrors    = 1 // At least one path ended with status error, or the run was interrupted
	InvalidUsage  = 2 // Bad flags or no input paths
	InvalidConfig = 3 // Configuration file invalid
	RuntimeError  = 4 // Setup failure (audit log, database, metrics)
)
