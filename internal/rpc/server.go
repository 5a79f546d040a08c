// Package rpc serves the ledger over JSON-RPC on HTTP and streams committed
// events over WebSocket.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/LeJamon/swapx/internal/identity"
	"github.com/LeJamon/swapx/internal/metrics"
)

// Config wires a Server to its collaborators. Events, History and Metrics
// are optional; the matching endpoints report themselves disabled without
// them.
type Config struct {
	Ledger       Ledger
	Identity     *identity.Resolver
	Events       EventSource
	History      EventHistory
	Metrics      *prometheus.Registry
	Timeout      time.Duration
	MaxBodyBytes int64
	Logger       zerolog.Logger
}

// Server handles JSON-RPC requests against a ledger.
type Server struct {
	registry *MethodRegistry
	ledger   Ledger
	identity *identity.Resolver
	events   EventSource
	history  EventHistory
	metrics  *prometheus.Registry
	timeout  time.Duration
	maxBody  int64
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer builds a server and registers every method.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("rpc: ledger is required")
	}
	if cfg.Identity == nil {
		return nil, errors.New("rpc: identity resolver is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	s := &Server{
		registry: NewMethodRegistry(),
		ledger:   cfg.Ledger,
		identity: cfg.Identity,
		events:   cfg.Events,
		history:  cfg.History,
		metrics:  cfg.Metrics,
		timeout:  cfg.Timeout,
		maxBody:  cfg.MaxBodyBytes,
		logger:   cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.registerAllMethods()
	return s, nil
}

// Registry returns the method registry.
func (s *Server) Registry() *MethodRegistry { return s.registry }

// Router mounts JSON-RPC on "/", the event stream on "/ws", plus "/health"
// and "/metrics".
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleStream).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", metrics.Handler(s.metrics)).Methods(http.MethodGet)
	}
	r.Handle("/", s).Methods(http.MethodPost, http.MethodOptions)
	return r
}

// Run serves Router on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("JSON-RPC server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info().Msg("JSON-RPC server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// ServeHTTP handles one JSON-RPC POST.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		s.writeResponse(w, nil, nil, RpcErrorInvalidParams("Failed to read request body: "+err.Error()))
		return
	}
	defer r.Body.Close()

	var request Request
	if err := json.Unmarshal(body, &request); err != nil {
		s.writeResponse(w, nil, nil, NewRpcError(RpcJSON_RPC, "jsonInvalid", "Invalid JSON: "+err.Error()))
		return
	}
	if request.Method == "" {
		s.writeResponse(w, &request, nil, NewRpcError(RpcMISSING_COMMAND, "missingCommand", "Missing method field"))
		return
	}

	var params json.RawMessage
	if len(request.Params) > 0 {
		params = request.Params[0]
	}

	ip := clientIP(r)
	result, rpcErr := s.Dispatch(r.Context(), "http", request.Method, params, roleFor(ip), ip)
	s.writeResponse(w, &request, result, rpcErr)
}

// Dispatch runs method with params under the server's request timeout. It is
// shared by every transport.
func (s *Server) Dispatch(ctx context.Context, transport, method string, params json.RawMessage, role Role, ip string) (interface{}, *RpcError) {
	metrics.RPCRequestsTotal.WithLabelValues(transport, method).Inc()

	handler, exists := s.registry.Get(method)
	if !exists {
		return nil, RpcErrorMethodNotFound(method)
	}
	if role < handler.RequiredRole() {
		return nil, RpcErrorNoPermission(method)
	}
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, rpcErr := handler.Handle(&RpcContext{Context: ctx, Role: role, ClientIP: ip}, params)
	if rpcErr != nil {
		s.logger.Debug().
			Str("transport", transport).
			Str("method", method).
			Str("client", ip).
			Str("error", rpcErr.ErrorString).
			Msg("rpc request failed")
	}
	return result, rpcErr
}

// writeResponse wraps result or rpcErr in a {"result": {...}} envelope with
// a status field.
func (s *Server) writeResponse(w http.ResponseWriter, request *Request, result interface{}, rpcErr *RpcError) {
	response := make(map[string]interface{})
	if request != nil && request.ID != nil {
		response["id"] = request.ID
	}

	if rpcErr != nil {
		resultObj := map[string]interface{}{
			"status":        "error",
			"error":         rpcErr.ErrorString,
			"error_code":    rpcErr.Code,
			"error_message": rpcErr.Message,
		}
		if rpcErr.Result != "" {
			resultObj["engine_result"] = rpcErr.Result
		}
		if request != nil {
			resultObj["request"] = map[string]interface{}{"method": request.Method}
		}
		response["result"] = resultObj
	} else if resultMap, ok := result.(map[string]interface{}); ok {
		resultMap["status"] = "success"
		response["result"] = resultMap
	} else {
		response["result"] = map[string]interface{}{
			"status": "success",
			"data":   result,
		}
	}

	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"sequence": s.ledger.Sequence(),
	})
}

// clientIP is the peer address of the connection. Forwarding headers are
// ignored since the address decides the admin role.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// roleFor grants admin to loopback peers.
func roleFor(ip string) Role {
	if parsed := net.ParseIP(ip); parsed != nil && parsed.IsLoopback() {
		return RoleAdmin
	}
	return RoleGuest
}

// RoleForAddr returns the role of a peer given as host:port.
func RoleForAddr(addr string) Role {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return roleFor(host)
}
