package main

// this file converts between fasthttp's request context and the router's own request/response values

import (
	"net/http"

	"github.com/valyala/fasthttp"

	"github.com/tianon/phpfront/internal/httpmsg"
	"github.com/tianon/phpfront/internal/router"
)

func handler(rt *router.Router) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		writeResponse(ctx, rt.Route(requestFrom(ctx)))
	}
}

func requestFrom(ctx *fasthttp.RequestCtx) *httpmsg.Request {
	header := make(http.Header)
	ctx.Request.Header.VisitAll(func(k, v []byte) {
		header.Add(string(k), string(v))
	})

	// ctx buffers are recycled once the handler returns, so everything gets copied
	return &httpmsg.Request{
		Method:     string(ctx.Method()),
		Path:       string(ctx.Path()),
		Query:      string(ctx.URI().QueryString()),
		Header:     header,
		Body:       append([]byte(nil), ctx.PostBody()...),
		RemoteAddr: ctx.RemoteAddr().String(),
		Host:       string(ctx.Host()),
	}
}

func writeResponse(ctx *fasthttp.RequestCtx, res *httpmsg.Response) {
	for k, vs := range res.Header {
		for _, v := range vs {
			ctx.Response.Header.Add(k, v)
		}
	}
	// the server runs with NoDefaultContentType, so leaving it unset really means no header
	if res.ContentType != "" {
		ctx.SetContentType(res.ContentType)
	}
	ctx.SetStatusCode(res.Status)
	ctx.SetBody(res.Body)
}
