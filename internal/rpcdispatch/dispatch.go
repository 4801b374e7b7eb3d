// Package rpcdispatch implements method dispatch and error shaping (spec
// §4.13, C13): a registered-method table, panic recovery, and the closed
// error-kind taxonomy that maps internal errors onto JSON-RPC error
// objects. Grounded on silkworm/silkrpc's http/methods.hpp (the method
// name constants) and json_rpc error handling in commands/.
package rpcdispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/erigontech/rpcdaemon/internal/rpcerror"
	"github.com/erigontech/rpcdaemon/internal/rpclog"
)

// Handler serves one JSON-RPC method. params is the raw "params" array or
// object from the request; the return value is marshaled as "result".
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Request is a decoded JSON-RPC 2.0 request object.
type Request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// ErrorObject is a JSON-RPC 2.0 error object.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is a decoded JSON-RPC 2.0 response object; exactly one of
// Result/Error is set.
type Response struct {
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
}

// Dispatcher holds the compile-time method table and serves requests
// against it.
type Dispatcher struct {
	methods map[string]Handler
	log     rpclog.Logger
}

// New builds an empty dispatcher; callers register every served method
// with Register before Serve is called.
func New() *Dispatcher {
	return &Dispatcher{methods: make(map[string]Handler), log: rpclog.New("component", "rpcdispatch")}
}

// Register binds name to handler. Registering the same name twice is a
// programming error and panics immediately rather than silently
// shadowing the first registration.
func (d *Dispatcher) Register(name string, handler Handler) {
	if _, exists := d.methods[name]; exists {
		panic(fmt.Sprintf("rpcdispatch: method %q already registered", name))
	}
	d.methods[name] = handler
}

// Serve looks up and invokes req.Method, recovering from any panic inside
// the handler and shaping every error (including the recovered panic)
// into a JSON-RPC error object via the closed error-kind taxonomy (spec
// §4.13 "Error shaping").
func (d *Dispatcher) Serve(ctx context.Context, req Request) (resp Response) {
	resp = Response{ID: req.ID, JSONRPC: "2.0"}

	handler, ok := d.methods[req.Method]
	if !ok {
		resp.Error = shapeError(rpcerror.MethodNotFound(req.Method))
		return resp
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("handler panicked", "method", req.Method, "panic", r)
			resp.Error = &ErrorObject{Code: rpcerror.CodeInternal, Message: "unexpected exception"}
		}
	}()

	result, err := handler(ctx, req.Params)
	if err != nil {
		resp.Error = shapeError(err)
		return resp
	}
	resp.Result = result
	return resp
}

// shapeError maps an internal error onto a JSON-RPC error object via the
// closed rpcerror taxonomy: every error this daemon can produce is one of
// Transport, Shape, Domain, Revert or Internal (or implements Coded
// directly), and anything else is folded into -32000 rather than leaking
// an unshaped message (spec §4.13 "closed taxonomy").
func shapeError(err error) *ErrorObject {
	if coded, ok := err.(rpcerror.Coded); ok {
		return &ErrorObject{Code: coded.Code(), Message: err.Error()}
	}
	return &ErrorObject{Code: rpcerror.CodeInternal, Message: "unexpected exception"}
}
