//go:build tools
// +build tools

// Package tools declares tool dependencies for this module.
//
// These imports are not used at runtime. They keep mockgen, invoked via
// `go generate`, tracked as an explicit module dependency so go.mod and
// go.sum stay in sync on a fresh checkout.
package chat_presence

import (
	_ "go.uber.org/mock/mockgen"
)
