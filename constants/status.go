package constants

// RunStatus is the terminal state of one ingestion run.
type RunStatus string

const (
	RunStatusSuccess        RunStatus = "SUCCESS"         // every new file processed
	RunStatusPartialFailure RunStatus = "PARTIAL_FAILURE" // at least one per-file error
	RunStatusFailure        RunStatus = "FAILURE"         // listing failed, nothing persisted
)

// DefaultCurrency is used when the model omits a currency.
const DefaultCurrency = "USD"
