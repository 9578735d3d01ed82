//go:build tools

// Package tools lists the development tools used on this repository. They are
// run with `go run` or installed with `go install` and are not tracked in go.mod.
package tools

// Air reloads sen-dashboard on template and Go changes when DEV=true:
//
//	go install github.com/air-verse/air@v1.63.0
//	air --build.cmd "go build -o ./tmp/sen-dashboard ./cmd/sen-dashboard" --build.bin ./tmp/sen-dashboard
//
// mockgen regenerates internal/mocks from the ports package:
//
//	go generate ./internal/mocks
