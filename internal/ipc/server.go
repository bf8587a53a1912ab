package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"soundcheck/internal/daemon"
	"soundcheck/internal/gateway"
	"soundcheck/internal/logging"
)

// Server exposes the gateway via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, gateway: d.Gateway(), logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file. Open client
// connections are served until the client hangs up.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon  *daemon.Daemon
	gateway *gateway.Gateway
	logger  *slog.Logger
	ctx     context.Context
}

func callContext(ctx context.Context, task string) context.Context {
	ctx = logging.WithTask(ctx, task)
	return logging.WithRequestID(ctx, uuid.NewString())
}

func (s *service) ReferenceFingerprint(_ Empty, resp *VectorResponse) error {
	resp.Vector = s.gateway.ReferenceFingerprint(callContext(s.ctx, gateway.TaskReferenceFingerprint))
	return nil
}

func (s *service) StatReference(_ Empty, resp *StatResponse) error {
	*resp = s.gateway.StatReference(callContext(s.ctx, gateway.TaskStatReference))
	return nil
}

func (s *service) ProbeReferenceDecode(_ Empty, resp *ProbeResponse) error {
	*resp = s.gateway.ProbeReferenceDecode(callContext(s.ctx, gateway.TaskProbeReferenceDecode))
	return nil
}

func (s *service) ProbeLiveDecode(req MediaRequest, resp *ProbeResponse) error {
	*resp = s.gateway.ProbeLiveDecode(callContext(s.ctx, gateway.TaskProbeLiveDecode), req)
	return nil
}

func (s *service) FingerprintAudioFromURL(req URLRequest, resp *VectorResponse) error {
	resp.Vector = s.gateway.FingerprintAudioFromURL(callContext(s.ctx, gateway.TaskFingerprintAudioFromURL), req.URL)
	return nil
}

func (s *service) FingerprintMedia(req MediaRequest, resp *VectorResponse) error {
	resp.Vector = s.gateway.FingerprintMedia(callContext(s.ctx, gateway.TaskFingerprintMedia), req)
	return nil
}

func (s *service) CompareFingerprints(req CompareRequest, resp *CompareResponse) error {
	*resp = s.gateway.CompareFingerprints(callContext(s.ctx, gateway.TaskCompareFingerprints), req)
	return nil
}

func (s *service) RecordStep(req RecordRequest, _ *Empty) error {
	s.gateway.RecordStep(callContext(s.ctx, gateway.TaskRecordStep), req.Record)
	return nil
}

func (s *service) RecordAction(req RecordRequest, _ *Empty) error {
	s.gateway.RecordAction(callContext(s.ctx, gateway.TaskRecordAction), req.Record)
	return nil
}

func (s *service) RecordNavTiming(req RecordRequest, _ *Empty) error {
	s.gateway.RecordNavTiming(callContext(s.ctx, gateway.TaskRecordNavTiming), req.Record)
	return nil
}

func (s *service) RecordRequest(req RecordRequest, _ *Empty) error {
	s.gateway.RecordRequest(callContext(s.ctx, gateway.TaskRecordRequest), req.Record)
	return nil
}

func (s *service) RecordRequestsBatch(req RecordRequest, _ *Empty) error {
	s.gateway.RecordRequestsBatch(callContext(s.ctx, gateway.TaskRecordRequestsBatch), req.Record)
	return nil
}

func (s *service) FlushResults(_ Empty, resp *FlushResponse) error {
	resp.Path = s.gateway.FlushResults(callContext(s.ctx, gateway.TaskFlushResults))
	return nil
}

// Invoke runs a task by name. Unknown names are the only RPC error.
func (s *service) Invoke(req InvokeRequest, resp *InvokeResponse) error {
	result, err := s.gateway.Dispatch(s.ctx, req.Task, req.Payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode %s result: %w", req.Task, err)
	}
	resp.Result = encoded
	return nil
}

func (s *service) Status(_ Empty, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx)
	return nil
}
