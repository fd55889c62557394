//go:build simdebug

package core

// debugAssertions makes World.Tick panic on non-finite mass state.
const debugAssertions = true
