// Package constants contains the progress lines and default paths shared by
// the runner and the command line.
package constants

// Progress lines written to stdout during an invocation.
const (
	// MsgLockBusy is reported when another invocation holds the run lock.
	MsgLockBusy = "Scheduler is already running (lock held for %s), skipping this invocation"

	// MsgRunningJob is reported before a due job is dispatched.
	MsgRunningJob = "Running job %s"

	// MsgJobFinished is reported after a dispatch returns.
	MsgJobFinished = "Finished job %s (exit code %d, %s)"

	// MsgSkippingJob is reported for a job that is not due yet.
	MsgSkippingJob = "Skipping job %s, next run at %s"

	// MsgInvalidJob is reported for a job skipped because of its definition.
	MsgInvalidJob = "Skipping job %s: %v"

	// MsgWouldRun is reported in dry-run mode instead of MsgRunningJob.
	MsgWouldRun = "Would run job %s: %s"

	// MsgDone summarizes the invocation.
	MsgDone = "Done: %d dispatched, %d skipped, %d invalid"
)

// Status table.
const (
	// MsgStatusHeader lists the status table columns, separated by "|".
	MsgStatusHeader = "JOB|INTERVAL|LAST RUN|NEXT DUE|DUE"

	// MsgStatusRetired marks a record whose job is no longer scheduled.
	MsgStatusRetired = "retired"

	// MsgNever is shown for a job that has never run.
	MsgNever = "never"

	// MsgStatusEmpty is shown when the store holds no records.
	MsgStatusEmpty = "No jobs recorded in %s"
)

// Configuration check.
const (
	// MsgConfigValid confirms a configuration passed validation.
	MsgConfigValid = "Configuration %s is valid (%d jobs)"

	// MsgConfigInvalid introduces validation errors.
	MsgConfigInvalid = "Configuration %s has %d error(s):"

	// MsgConfigStore shows the resolved run store path.
	MsgConfigStore = "Run store: %s"

	// MsgConfigDisabled lists a job switched off with enabled = false.
	MsgConfigDisabled = "Disabled job: %s"
)
