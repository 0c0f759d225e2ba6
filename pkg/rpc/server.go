// Package rpc provides a lightweight JSON-over-TCP RPC framework exposing
// the engine's Insert/Remove/Search operations to out-of-process
// callers, without pulling in the full google.golang.org/grpc dependency.
//
// Protocol: newline-delimited JSON over a persistent TCP connection.
//
// Example server:
//
//	s := rpc.NewServer()
//	s.Register("Database.Search", handleSearch)
//	s.Serve(":9000")
//
// Example client:
//
//	c, _ := rpc.Dial("localhost:9000")
//	var resp SearchResponse
//	c.Call("Database.Search", &SearchRequest{Term: "hello"}, &resp)
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/lucid-search/lucid/pkg/metrics"
)

// HandlerFunc processes an RPC request and returns a response or error.
type HandlerFunc func(ctx context.Context, req json.RawMessage) (any, error)

// Request is the wire format for an RPC request.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

// Response is the wire format for an RPC response.
type Response struct {
	ID    string `json:"id"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Server is a lightweight JSON-over-TCP RPC server.
type Server struct {
	handlers map[string]HandlerFunc
	listener net.Listener
	logger   *slog.Logger
	metrics  *metrics.Metrics
	mu       sync.RWMutex
	wg       sync.WaitGroup
	done     chan struct{}
}

// NewServer creates a new RPC server.
func NewServer() *Server {
	return &Server{
		handlers: make(map[string]HandlerFunc),
		logger:   slog.Default().With("component", "rpc-server"),
		done:     make(chan struct{}),
	}
}

// SetMetrics wires m into the server so every handled call updates
// RPCRequestsTotal/RPCRequestDuration/RPCRequestsInFlight.
func (s *Server) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// Register adds a handler for the given RPC method name. Method names
// follow the "Service.Method" convention, e.g. "Database.Search".
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// Serve starts accepting TCP connections on the given address. It blocks
// until Stop is called.
func (s *Server) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	s.logger.Info("rpc server listening", "addr", addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				s.logger.Error("accept error", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return // connection closed or read error
		}

		s.mu.RLock()
		handler, exists := s.handlers[req.Method]
		s.mu.RUnlock()

		resp := Response{ID: req.ID}

		if !exists {
			resp.Error = fmt.Sprintf("unknown method: %s", req.Method)
			if s.metrics != nil {
				s.metrics.RPCRequestsTotal.WithLabelValues(req.Method, "unknown_method").Inc()
			}
		} else {
			if s.metrics != nil {
				s.metrics.RPCRequestsInFlight.Inc()
			}
			start := time.Now()
			data, err := handler(context.Background(), req.Params)
			if s.metrics != nil {
				s.metrics.RPCRequestsInFlight.Dec()
				s.metrics.RPCRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
			}
			status := "ok"
			if err != nil {
				resp.Error = err.Error()
				status = "error"
			} else {
				resp.Data = data
			}
			if s.metrics != nil {
				s.metrics.RPCRequestsTotal.WithLabelValues(req.Method, status).Inc()
			}
		}

		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write error", "method", req.Method, "error", err)
			return
		}
	}
}

// MethodCount returns the number of registered methods.
func (s *Server) MethodCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	s.logger.Info("rpc server stopped")
}
