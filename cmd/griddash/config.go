package main

import "time"

// Flag names for Viper binding
const (
	// Global flags
	FlagVerbose = "verbose"
	FlagConfig  = "config"
	FlagTables  = "tables"
	FlagLogFile = "log-file"

	// Run command flags
	FlagTUI = "tui"

	// Snapshot command flags
	FlagWidth = "width"
)

// shutdownTimeout bounds how long in-flight fetches get after a signal.
const shutdownTimeout = 5 * time.Second

// defaultWidth is used for snapshot output when stdout is not a terminal.
const defaultWidth = 100
