package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/protocol"
	"github.com/zeusync/entisync/internal/core/protocol/quic"
	"github.com/zeusync/entisync/internal/core/protocol/websocket"
)

// ListenAndServe runs the event loop and the configured transport until
// ctx ends. ready, when not nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, ready func(net.Addr)) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// A closed server stops the transport too.
	g.Go(func() error {
		defer stop()
		return s.Run(ctx)
	})

	switch s.config.Transport {
	case TransportWebsocket:
		if err := s.serveWebsocket(ctx, g, ready); err != nil {
			_ = s.Close()
			return err
		}
	case TransportQUIC:
		if err := s.serveQUIC(ctx, g, ready); err != nil {
			_ = s.Close()
			return err
		}
	default:
		_ = s.Close()
		return fmt.Errorf("%w: %q", ErrUnknownTransport, s.config.Transport)
	}

	return g.Wait()
}

func (s *Server) acceptLink(link protocol.Link) {
	if err := s.Accept(link); err != nil {
		s.logger.Warn("Connection rejected", log.String("remote_addr", link.RemoteAddr()), log.Error(err))
	}
}

func (s *Server) serveWebsocket(ctx context.Context, g *errgroup.Group, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.ListenAddr, err)
	}
	acceptor := websocket.NewAcceptor(s.config.Websocket, s.acceptLink, s.logger)
	srv := &http.Server{
		Handler:           acceptor.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Server listening", log.String("addr", ln.Addr().String()), log.String("path", s.config.Websocket.Path))
	if ready != nil {
		ready(ln.Addr())
	}

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return nil
}

func (s *Server) serveQUIC(ctx context.Context, g *errgroup.Group, ready func(net.Addr)) error {
	tlsConfig, err := s.tlsConfig()
	if err != nil {
		return err
	}
	ln, err := quic.Listen(s.config.ListenAddr, tlsConfig, s.config.QUIC, s.logger)
	if err != nil {
		return err
	}

	s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))
	if ready != nil {
		ready(ln.Addr())
	}

	g.Go(func() error {
		for {
			link, err := ln.Accept(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("Failed to accept connection", log.Error(err))
				// short pause before retrying
				time.Sleep(100 * time.Millisecond)
				continue
			}
			s.acceptLink(link)
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})
	return nil
}

func (s *Server) tlsConfig() (*tls.Config, error) {
	if s.config.CertFile != "" && s.config.KeyFile != "" {
		return quic.LoadTLS(s.config.CertFile, s.config.KeyFile)
	}
	s.logger.Warn("No certificate configured, using a self-signed one")
	return quic.GenerateSelfSignedTLS()
}
