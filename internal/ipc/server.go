package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"ytqueue/internal/daemon"
	"ytqueue/internal/logging"
	"ytqueue/internal/logs"
	"ytqueue/internal/services"
)

const serviceName = "YTQueue"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. shutdown is
// invoked when a client asks the daemon process to exit.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, shutdown func(), logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")
	if shutdown == nil {
		shutdown = func() {}
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
	svc := &service{daemon: d, logger: logger, ctx: serverCtx, shutdown: shutdown}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		_ = listener.Close()
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

// Serve starts accepting RPC connections until the server is closed.
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

// Close stops the server and removes the socket file.
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
			logging.String(logging.FieldErrorHint, "remove the socket file manually or rerun ytqueue stop"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

// userError strips the classification prefix so CLI users see the same
// message API clients do.
func userError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(services.Message(err))
}

func (s *service) Status(_ Empty, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx).APIStatus()
	return nil
}

func (s *service) Stop(_ Empty, resp *StopResponse) error {
	s.logger.Info("daemon shutdown requested via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	resp.Stopping = true
	// Reply before the listener goes away.
	go func() {
		time.Sleep(50 * time.Millisecond)
		s.shutdown()
	}()
	return nil
}

func (s *service) Add(req AddRequest, resp *AckResponse) error {
	ack, err := s.daemon.Queue().Add(s.ctx, req)
	if err != nil {
		return userError(err)
	}
	*resp = ack
	return nil
}

func (s *service) Delete(req DeleteRequest, resp *AckResponse) error {
	ack, err := s.daemon.Queue().Delete(s.ctx, req)
	if err != nil {
		return userError(err)
	}
	*resp = ack
	return nil
}

func (s *service) StartPending(req StartPendingRequest, resp *AckResponse) error {
	ack, err := s.daemon.Queue().Start(s.ctx, req)
	if err != nil {
		return userError(err)
	}
	*resp = ack
	return nil
}

func (s *service) Queue(_ Empty, resp *QueueResponse) error {
	*resp = s.daemon.Queue().Queue()
	return nil
}

func (s *service) History(_ Empty, resp *HistoryResponse) error {
	history, err := s.daemon.Queue().History(s.ctx)
	if err != nil {
		return userError(err)
	}
	*resp = history
	return nil
}

func (s *service) SetConcurrency(req ConcurrencyRequest, resp *WorkflowStatus) error {
	status, err := s.daemon.Queue().SetConcurrency(req)
	if err != nil {
		return userError(err)
	}
	*resp = status
	return nil
}

func (s *service) Version(_ Empty, resp *VersionResponse) error {
	version, err := s.daemon.Version(s.ctx)
	*resp = version
	return err
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	resp.Reset = result.Reset
	return nil
}

func (s *service) DatabaseHealth(_ Empty, resp *DatabaseHealthResponse) error {
	tables, err := s.daemon.DatabaseHealth(s.ctx)
	for _, h := range tables {
		resp.Tables = append(resp.Tables, DatabaseHealth{
			Name:             h.Name,
			DBPath:           h.DBPath,
			DatabaseExists:   h.DatabaseExists,
			DatabaseReadable: h.DatabaseReadable,
			SchemaVersion:    h.SchemaVersion,
			TableExists:      h.TableExists,
			IntegrityCheck:   h.IntegrityCheck,
			TotalItems:       h.TotalItems,
			BackupExists:     h.BackupExists,
			Error:            h.Error,
		})
	}
	if err != nil && len(resp.Tables) == 0 {
		return err
	}
	return nil
}
