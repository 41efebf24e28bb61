package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[R any](c *Client, method string, args any) (*R, error) {
	var resp R
	if err := c.client.Call(serviceName+"."+method, args, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", Empty{})
}

// Stop asks the daemon process to shut down.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", Empty{})
}

// Add submits a download request.
func (c *Client) Add(req AddRequest) (*AckResponse, error) {
	return call[AckResponse](c, "Add", req)
}

// Cancel removes active or pending jobs.
func (c *Client) Cancel(ids []string) (*AckResponse, error) {
	return call[AckResponse](c, "Delete", DeleteRequest{IDs: ids, Where: "queue"})
}

// Clear removes finished jobs.
func (c *Client) Clear(ids []string) (*AckResponse, error) {
	return call[AckResponse](c, "Delete", DeleteRequest{IDs: ids, Where: "done"})
}

// StartPending releases pending jobs.
func (c *Client) StartPending(ids []string) (*AckResponse, error) {
	return call[AckResponse](c, "StartPending", StartPendingRequest{IDs: ids})
}

// Queue returns the live queue view.
func (c *Client) Queue() (*QueueResponse, error) {
	return call[QueueResponse](c, "Queue", Empty{})
}

// History returns the persisted job tables.
func (c *Client) History() (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", Empty{})
}

// SetConcurrency switches the concurrency policy.
func (c *Client) SetConcurrency(policy string, limit int) (*WorkflowStatus, error) {
	return call[WorkflowStatus](c, "SetConcurrency", ConcurrencyRequest{Policy: policy, Limit: limit})
}

// Version reports the daemon and yt-dlp versions.
func (c *Client) Version() (*VersionResponse, error) {
	return call[VersionResponse](c, "Version", Empty{})
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}

// DatabaseHealth retrieves diagnostics for every job table.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	return call[DatabaseHealthResponse](c, "DatabaseHealth", Empty{})
}
