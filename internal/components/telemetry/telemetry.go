// Package telemetry is how components report what happens to them.
package telemetry

import (
	"fmt"
)

// API is the reporting surface every component depends on. Tests swap in a
// Recorder to assert on what was reported.
type API interface {
	// ReportBroken is for failures someone has to fix. The id names the
	// component and method (ex. `flow.login`), details go into params.
	//
	// Ids are lowercase, components are separated from methods with a dot and
	// multi-word methods use dashes.
	ReportBroken(id string, params ...any)

	// ReportWarning is for failures that are expected to happen now and then,
	// like an upstream rejecting a request. Ids follow ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug is for tracing what happened, it is dropped unless verbose.
	ReportDebug(msg string, params ...any)

	// ReportCount records a point-in-time count of an event.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace. The innermost wrapper prefixes
// last, so NewScopedAPI("outer", NewScopedAPI("inner", api)) yields
// "inner: outer: id".
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
