// Package rpc implements the method-call transport used by the dashboard: a
// registry of named methods, an HTTP endpoint exposing them under
// /api/method/{method}, and callers that reach them in-process or over HTTP.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Method handles one remote call. Args holds the raw JSON object sent by the
// caller and is never nil.
type Method func(ctx context.Context, args json.RawMessage) (any, error)

// Registry maps method names to handlers.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]Method
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]Method)}
}

// Register adds a method. Registering the same name twice panics since it
// always indicates a wiring mistake.
func (r *Registry) Register(name string, fn Method) {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		panic("rpc: method name and handler required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.methods[name]; exists {
		panic(fmt.Sprintf("rpc: method %s registered twice", name))
	}
	r.methods[name] = fn
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Method, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.methods[name]
	return fn, ok
}

// Names lists registered methods in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch invokes the named method with raw JSON arguments.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (any, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, name)
	}
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	return fn(ctx, args)
}

var validate = validator.New()

// Bind decodes raw call arguments into dest and validates its struct tags.
func Bind(args json.RawMessage, dest any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if err := validate.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			parts := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidArgs, strings.Join(parts, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}

// Typed adapts a handler taking decoded arguments into a Method.
func Typed[A any](fn func(ctx context.Context, args A) (any, error)) Method {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args A
		if err := Bind(raw, &args); err != nil {
			return nil, err
		}
		return fn(ctx, args)
	}
}

// NoArgs adapts a handler that ignores its arguments into a Method.
func NoArgs(fn func(ctx context.Context) (any, error)) Method {
	return func(ctx context.Context, _ json.RawMessage) (any, error) {
		return fn(ctx)
	}
}
