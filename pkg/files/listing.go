package files

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sheepe/pterogo/pkg/client"
	"github.com/sheepe/pterogo/pkg/metrics"
	"github.com/sheepe/pterogo/pkg/protocol"
	"github.com/sheepe/pterogo/pkg/tree"
)

// Server is what a file node needs from the server that owns it.
// *panel.Server satisfies it.
type Server interface {
	Identifier() string
	Verified() bool
	Execute(ctx context.Context, r *client.Request, suppressed ...int) ([]byte, error)
}

func endpoint(s Server, op string) string {
	return "/servers/" + s.Identifier() + "/files/" + op
}

func requireVerified(s Server, op string) error {
	if !s.Verified() {
		return fmt.Errorf("%s: %w", op, client.ErrUnverified)
	}
	return nil
}

// listDirectory fetches dir and parents every entry at dir.
func listDirectory(ctx context.Context, s Server, dir string) ([]*File, error) {
	dir = tree.TrimTrailingSeparator(dir)
	req := client.NewRequest(http.MethodGet, endpoint(s, "list")).
		WithQuery("directory", tree.RootDisplay(dir))

	data, err := s.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	var list protocol.List[protocol.FileAttributes]
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse listing of %s: %w", tree.RootDisplay(dir), err)
	}

	files := make([]*File, 0, len(list.Data))
	for _, item := range list.Data {
		files = append(files, newFile(s, item.Attributes, dir))
	}
	return files, nil
}

func findByName(files []*File, name string) (*File, bool) {
	for _, f := range files {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// relist re-reads dir after a mutation and returns the entry called name.
// A missing entry is a *ConsistencyError, never an absent result.
func relist(ctx context.Context, s Server, op, dir, name string) (*File, error) {
	files, err := listDirectory(ctx, s, dir)
	if err != nil {
		return nil, fmt.Errorf("%s: re-list %s: %w", op, tree.RootDisplay(dir), err)
	}
	if f, ok := findByName(files, name); ok {
		return f, nil
	}
	metrics.RecordRelistMiss()
	return nil, &ConsistencyError{Op: op, Directory: tree.TrimTrailingSeparator(dir), Name: name}
}

// readFile fetches the raw contents at path.
func readFile(ctx context.Context, s Server, path string) ([]byte, error) {
	req := client.NewRequest(http.MethodGet, endpoint(s, "contents")).WithQuery("file", path)
	return s.Execute(ctx, req)
}

// writeFile writes contents to path and re-lists its parent.
func writeFile(ctx context.Context, s Server, op, path string, contents []byte) (*File, error) {
	req := client.NewRequest(http.MethodPost, endpoint(s, "write")).WithQuery("file", path)
	req.Body = contents
	req.ContentType = "text/plain"
	if _, err := s.Execute(ctx, req, http.StatusNoContent); err != nil {
		return nil, err
	}

	dir, name := tree.SplitParentAndName(tree.ComposeChildPath("", path))
	return relist(ctx, s, op, dir, name)
}

// createFolder creates name under parent and re-lists parent.
func createFolder(ctx context.Context, s Server, op, parent, name string) (*File, error) {
	parent = tree.TrimTrailingSeparator(parent)
	req, err := client.NewJSONRequest(http.MethodPost, endpoint(s, "create-folder"), protocol.CreateFolderRequest{
		Root: tree.RootDisplay(parent),
		Name: name,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.Execute(ctx, req, http.StatusNoContent); err != nil {
		return nil, err
	}
	return relist(ctx, s, op, parent, name)
}
