//go:build !pcmdebug

// ABOUTME: Release build switch for goroutine affinity checks
// ABOUTME: Leaves the checks compiled out
package pcmout

const addDebugChecks = false
