package files

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sheepe/pterogo/pkg/client"
	"github.com/sheepe/pterogo/pkg/protocol"
	"github.com/sheepe/pterogo/pkg/tree"
)

const serverID = "1a7ce997"

var created = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func entry(name, mode string, size int64) protocol.FileAttributes {
	return protocol.FileAttributes{
		Name:       name,
		Mode:       mode,
		Size:       size,
		IsFile:     mode[0] != 'd',
		IsEditable: mode[0] != 'd',
		MimeType:   "text/plain",
		CreatedAt:  created,
	}
}

// fakePanel is an in-memory file API. Directories are keyed by their
// display path ("/", "/games").
type fakePanel struct {
	mu       sync.Mutex
	dirs     map[string][]protocol.FileAttributes
	contents map[string]string
	calls    []string
	queries  []string
	bodies   map[string][]byte
	hidden   map[string]bool
	fail     map[string]int
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		dirs: map[string][]protocol.FileAttributes{
			"/": {
				entry("games", "drwxr-x", 4096),
				entry("server.properties", "-rw-r--", 12),
				entry("world.tar.gz", "-rw-r--", 2048),
			},
			"/games": {
				entry("a.txt", "-rw-r--", 5),
			},
		},
		contents: map[string]string{
			"/server.properties": "motd=hello\n",
			"/games/a.txt":       "hello",
		},
		bodies: map[string][]byte{},
		hidden: map[string]bool{},
		fail:   map[string]int{},
	}
}

func dirKey(p string) string {
	return tree.RootDisplay(tree.TrimTrailingSeparator(p))
}

func (p *fakePanel) add(dir string, attrs protocol.FileAttributes) {
	key := dirKey(dir)
	p.remove(key, attrs.Name)
	p.dirs[key] = append(p.dirs[key], attrs)
}

func (p *fakePanel) remove(dir, name string) (protocol.FileAttributes, bool) {
	key := dirKey(dir)
	for i, e := range p.dirs[key] {
		if e.Name == name {
			p.dirs[key] = append(p.dirs[key][:i], p.dirs[key][i+1:]...)
			return e, true
		}
	}
	return protocol.FileAttributes{}, false
}

func (p *fakePanel) opCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	copy(out, p.calls)
	return out
}

func (p *fakePanel) hide(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hidden[name] = true
}

func (p *fakePanel) failOp(op string, status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[op] = status
}

func (p *fakePanel) content(path string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contents[path]
}

func (p *fakePanel) body(op string) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bodies[op]
}

func (p *fakePanel) lastQuery() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queries) == 0 {
		return ""
	}
	return p.queries[len(p.queries)-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (p *fakePanel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/client/account" {
		writeJSON(w, http.StatusOK, protocol.Object[protocol.Account]{Object: "user", Attributes: protocol.Account{ID: 1, Username: "admin"}})
		return
	}

	op := strings.TrimPrefix(r.URL.Path, "/api/client/servers/"+serverID+"/files/")
	body, _ := io.ReadAll(r.Body)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, op)
	p.queries = append(p.queries, r.URL.RawQuery)
	p.bodies[op] = body

	if status, ok := p.fail[op]; ok {
		writeJSON(w, status, map[string]any{
			"errors": []map[string]string{{"code": "DaemonConnectionException", "status": "500", "detail": "daemon offline"}},
		})
		return
	}

	switch op {
	case "list":
		list := protocol.List[protocol.FileAttributes]{Object: "list", Data: []protocol.Object[protocol.FileAttributes]{}}
		for _, e := range p.dirs[dirKey(r.URL.Query().Get("directory"))] {
			if p.hidden[e.Name] {
				continue
			}
			list.Data = append(list.Data, protocol.Object[protocol.FileAttributes]{Object: "file_object", Attributes: e})
		}
		writeJSON(w, http.StatusOK, list)

	case "contents":
		data, ok := p.contents[tree.ComposeChildPath("", r.URL.Query().Get("file"))]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"errors": []map[string]string{{"code": "NotFoundHttpException", "status": "404", "detail": "not found"}},
			})
			return
		}
		w.Write([]byte(data))

	case "download":
		writeJSON(w, http.StatusOK, protocol.Object[protocol.SignedURLAttributes]{
			Object:     "signed_url",
			Attributes: protocol.SignedURLAttributes{URL: "https://node.example.com/download/file?token=abc"},
		})

	case "write":
		path := tree.ComposeChildPath("", r.URL.Query().Get("file"))
		dir, name := tree.SplitParentAndName(path)
		p.contents[path] = string(body)
		p.add(dir, entry(name, "-rw-r--", int64(len(body))))
		w.WriteHeader(http.StatusNoContent)

	case "rename":
		var req protocol.RenameRequest
		json.Unmarshal(body, &req)
		for _, pair := range req.Files {
			e, ok := p.remove(req.Root, pair.From)
			if !ok {
				continue
			}
			dir, name := tree.SplitParentAndName(tree.ComposeChildPath(req.Root, pair.To))
			e.Name = name
			p.add(dir, e)
		}
		w.WriteHeader(http.StatusNoContent)

	case "copy":
		var req protocol.CopyRequest
		json.Unmarshal(body, &req)
		dir, name := tree.SplitParentAndName(req.Location)
		for _, e := range p.dirs[dirKey(req.Root)] {
			if len(req.Files) == 1 && e.Name == req.Files[0] {
				e.Name = name
				p.add(dir, e)
				if data, ok := p.contents[tree.ComposeChildPath(tree.TrimTrailingSeparator(req.Root), req.Files[0])]; ok {
					p.contents[req.Location] = data
				}
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)

	case "create-folder":
		var req protocol.CreateFolderRequest
		json.Unmarshal(body, &req)
		p.add(req.Root, entry(req.Name, "drwxr-x", 4096))
		p.dirs[dirKey(tree.ComposeChildPath(req.Root, req.Name))] = nil
		w.WriteHeader(http.StatusNoContent)

	case "compress":
		var req protocol.FilesRequest
		json.Unmarshal(body, &req)
		archive := entry("archive-2024-05-01-120000.tar.gz", "-rw-r--", 512)
		archive.MimeType = "application/gzip"
		p.add(req.Root, archive)
		writeJSON(w, http.StatusOK, protocol.Object[protocol.FileAttributes]{Object: "file_object", Attributes: archive})

	case "decompress":
		w.WriteHeader(http.StatusNoContent)

	case "delete":
		var req protocol.FilesRequest
		json.Unmarshal(body, &req)
		for _, name := range req.Files {
			p.remove(req.Root, name)
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testServer struct {
	*client.Client
}

func (testServer) Identifier() string { return serverID }

// newTestServer starts a fake panel and returns a server handle on it,
// verified unless verify is false.
func newTestServer(t *testing.T, verify bool) (*fakePanel, Server) {
	t.Helper()
	panel := newFakePanel()
	ts := httptest.NewServer(panel)
	t.Cleanup(ts.Close)

	c := client.New(client.Config{Host: ts.URL, Token: "ptlc_test"})
	if verify {
		_, err := c.Verify(context.Background())
		require.NoError(t, err)
	}
	return panel, testServer{c}
}

// rootEntry builds a snapshot of a root entry without a network call.
func rootEntry(t *testing.T, s Server, panel *fakePanel, name string) *File {
	t.Helper()
	panel.mu.Lock()
	defer panel.mu.Unlock()
	for _, e := range panel.dirs["/"] {
		if e.Name == name {
			return newFile(s, e, "")
		}
	}
	t.Fatalf("no root entry %q", name)
	return nil
}
