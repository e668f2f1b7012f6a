package app

// AppState represents the different views of the progress TUI.
type AppState int

const (
	ProcessingArchives AppState = iota
	Finished
	ShowError
	Exiting
)
