// Package version reports the querykit build version.
//
// Version and commit are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/querykit/version.Version=1.2.0" ./cmd/querykit
//
// Without ldflags the VCS stamp from the Go toolchain is used.
package version
