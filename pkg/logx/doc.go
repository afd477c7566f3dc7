// Package logx wraps zerolog behind a small structured logging API used by
// every component. The zero Logger value is a safe no-op, which keeps
// constructors free of nil checks.
package logx
