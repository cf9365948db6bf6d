package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/0xmhha/launchpad-go/storage"
)

// maxRequestBody caps JSON-RPC request bodies at 1 MiB.
const maxRequestBody = 1 << 20

// Server serves JSON-RPC 2.0 requests over HTTP POST. Both single requests
// and batches are supported; the transport always answers 200 and carries
// errors inside the JSON-RPC response envelope.
type Server struct {
	handler *Handler
	logger  *zap.Logger
}

// NewServer creates a new JSON-RPC server
func NewServer(store storage.Reader, logger *zap.Logger) *Server {
	return &Server{
		handler: NewHandler(store, logger),
		logger:  logger,
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		s.write(w, NewErrorResponse(nil, NewError(ParseError, "failed to read request body", nil)))
		return
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		s.write(w, NewErrorResponse(nil, NewError(InvalidRequest, "empty request body", nil)))
		return
	}

	// A leading bracket marks a batch request.
	if body[0] == '[' {
		s.serveBatch(w, r, body)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.write(w, NewErrorResponse(nil, NewError(ParseError, "invalid JSON", err.Error())))
		return
	}

	s.write(w, s.dispatch(r, &req))
}

// serveBatch handles a batch of requests, answering each in order
func (s *Server) serveBatch(w http.ResponseWriter, r *http.Request, body []byte) {
	var batch BatchRequest
	if err := json.Unmarshal(body, &batch); err != nil {
		s.write(w, NewErrorResponse(nil, NewError(ParseError, "invalid JSON", err.Error())))
		return
	}
	if len(batch) == 0 {
		s.write(w, NewErrorResponse(nil, NewError(InvalidRequest, "empty batch", nil)))
		return
	}

	responses := make(BatchResponse, len(batch))
	for i := range batch {
		responses[i] = *s.dispatch(r, &batch[i])
	}
	s.write(w, responses)
}

// dispatch validates a single request and routes it to the handler
func (s *Server) dispatch(r *http.Request, req *Request) *Response {
	if req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, NewError(InvalidRequest, "jsonrpc must be \"2.0\"", nil))
	}
	if req.Method == "" {
		return NewErrorResponse(req.ID, NewError(InvalidRequest, "method is required", nil))
	}

	result, rpcErr := s.handler.HandleMethod(r.Context(), req.Method, req.Params)
	if rpcErr != nil {
		return NewErrorResponse(req.ID, rpcErr)
	}
	return NewResponse(req.ID, result)
}

// HandleMethodDirect dispatches a method call without the HTTP envelope.
// Useful for embedding and for tests.
func (s *Server) HandleMethodDirect(ctx context.Context, method string, params json.RawMessage) (interface{}, *Error) {
	return s.handler.HandleMethod(ctx, method, params)
}

func (s *Server) write(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write jsonrpc response", zap.Error(err))
	}
}
