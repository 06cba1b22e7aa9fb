package entity

// ProcessedFileRecord marks one source file as attempted.
type ProcessedFileRecord struct {
	Name         string `json:"name"`
	ModifiedTime string `json:"modifiedTime"`
	ID           string `json:"id"`
}

// ControlState is the persisted memory of which files were already attempted.
type ControlState struct {
	Processed   []ProcessedFileRecord `json:"processed"`
	LastUpdated string                `json:"lastUpdated"`
}
