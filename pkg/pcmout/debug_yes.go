//go:build pcmdebug

// ABOUTME: Debug build switch for goroutine affinity checks
// ABOUTME: Compiled with the pcmdebug tag to assert which goroutine touches stream state
package pcmout

const addDebugChecks = true
