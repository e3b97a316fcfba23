package tui

import "msgbar/internal/runner"

// Async message types for Bubble Tea commands.

type loadCompleteMsg struct {
	report runner.Report
}

type loadProgressMsg struct {
	done, total int
}

type actionResultMsg struct {
	action string
	err    error
}

type statusMsg string
