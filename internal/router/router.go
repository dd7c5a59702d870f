// Package router decides, per request, between serving a file from the
// document root and handing the request to the backend.
package router

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tianon/phpfront/internal/backend"
	"github.com/tianon/phpfront/internal/httpmsg"
	"github.com/tianon/phpfront/internal/resolver"
	"github.com/tianon/phpfront/internal/static"
)

// ScriptExtension marks a target as dynamic. Compared case-sensitively.
const ScriptExtension = "php"

type Class int

const (
	Static Class = iota
	Dynamic
)

func (c Class) String() string {
	if c == Dynamic {
		return "dynamic"
	}
	return "static"
}

// Classify tags target by its extension alone.
func Classify(target string) Class {
	if resolver.Extension(target) == ScriptExtension {
		return Dynamic
	}
	return Static
}

// Router is safe for concurrent use; nothing in it changes after New.
type Router struct {
	root    string
	backend backend.Dispatcher
	log     logrus.FieldLogger
}

// New returns a Router serving files from root. A nil dispatcher means
// backend.NotFound.
func New(log logrus.FieldLogger, root string, dispatcher backend.Dispatcher) *Router {
	if dispatcher == nil {
		dispatcher = backend.NotFound{}
	}
	return &Router{
		root:    root,
		backend: dispatcher,
		log:     log,
	}
}

// Route always produces a response; failures come back as 404/500.
func (rt *Router) Route(req *httpmsg.Request) *httpmsg.Response {
	log := rt.log.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"method":     req.Method,
		"path":       req.Path,
		"query":      req.Query,
	})
	log.Info("request")

	target := resolver.Target(rt.root, req.Path)

	// missing targets go to the backend too, it may know how to route them
	if !resolver.Exists(target) || Classify(target) == Dynamic {
		log.Debugf("dispatching %s to backend", target)
		return rt.backend.Dispatch(target, req)
	}
	return static.Serve(log, target)
}
