// Package panel exposes per-server handles built on a verified client.
package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sheepe/pterogo/pkg/client"
	"github.com/sheepe/pterogo/pkg/files"
	"github.com/sheepe/pterogo/pkg/logging"
	"github.com/sheepe/pterogo/pkg/protocol"
)

// Server is a handle on one server of the panel. It lends its identifier
// and the client's request capability to the file tree.
type Server struct {
	client *client.Client
	attrs  protocol.ServerAttributes
}

var _ files.Server = (*Server)(nil)

// New returns a handle for identifier without fetching anything.
func New(c *client.Client, identifier string) *Server {
	return &Server{client: c, attrs: protocol.ServerAttributes{Identifier: identifier}}
}

// Get fetches the server's attributes.
func Get(ctx context.Context, c *client.Client, identifier string) (*Server, error) {
	if err := c.RequireVerified(); err != nil {
		return nil, fmt.Errorf("get server %s: %w", identifier, err)
	}

	data, err := c.Execute(ctx, client.NewRequest(http.MethodGet, "/servers/"+identifier))
	if err != nil {
		return nil, err
	}

	var obj protocol.Object[protocol.ServerAttributes]
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse server %s: %w", identifier, err)
	}
	if obj.Attributes.Identifier == "" {
		obj.Attributes.Identifier = identifier
	}
	logging.Debug("server loaded", logging.String("server", identifier), logging.String("name", obj.Attributes.Name))
	return &Server{client: c, attrs: obj.Attributes}, nil
}

// Identifier is the short id used in every per-server URL.
func (s *Server) Identifier() string {
	return s.attrs.Identifier
}

// Name is empty for handles made with New.
func (s *Server) Name() string {
	return s.attrs.Name
}

// Attributes returns the attributes fetched by Get.
func (s *Server) Attributes() protocol.ServerAttributes {
	return s.attrs
}

func (s *Server) Verified() bool {
	return s.client.Verified()
}

func (s *Server) Execute(ctx context.Context, r *client.Request, suppressed ...int) ([]byte, error) {
	return s.client.Execute(ctx, r, suppressed...)
}

// Files fetches the root of the server's file tree.
func (s *Server) Files(ctx context.Context) (*files.Manager, error) {
	return files.NewManager(ctx, s)
}
