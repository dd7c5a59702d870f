// Package backend is where requests for scripts go.
//
// The router hands a Dispatcher every target that doesn't exist on disk, and
// every existing target it classifies as dynamic (a ".php" file). NotFound is the
// default and answers every request with a 404; FastCGI forwards to a running
// FastCGI application such as php-fpm.
package backend

import (
	"github.com/tianon/phpfront/internal/httpmsg"
)

// Dispatcher produces a response for a script request.
// script is the resolved target on disk, which may not exist.
type Dispatcher interface {
	Dispatch(script string, req *httpmsg.Request) *httpmsg.Response
}

// DispatcherFunc lets a plain function act as a Dispatcher.
type DispatcherFunc func(script string, req *httpmsg.Request) *httpmsg.Response

func (f DispatcherFunc) Dispatch(script string, req *httpmsg.Request) *httpmsg.Response {
	return f(script, req)
}

// NotFound is the dispatcher used when no backend is configured.
type NotFound struct{}

func (NotFound) Dispatch(string, *httpmsg.Request) *httpmsg.Response {
	return httpmsg.NotFound()
}
