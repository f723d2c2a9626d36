// Package metrics exposes the engine's Prometheus registry over HTTP.
package metrics

import (
	"context"
	"net/http"
	"time"
)

// Server 指标HTTP服务器
type Server struct {
	srv *http.Server
}

// NewServer 创建指标服务器，handler通常来自monitor.Handler()
func NewServer(addr string, handler http.Handler) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start 启动服务器（非阻塞）
func (s *Server) Start() {
	go func() {
		_ = s.srv.ListenAndServe()
	}()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
