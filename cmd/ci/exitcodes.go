package main

// Exit codes returned by the ci binary.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (bad config file, bad key)
	ExitNotFound    = 3 // Paper or author not found in any source
	ExitBlocked     = 4 // Scraping session blocked, awaiting manual resolution
)
