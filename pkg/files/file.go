// Package files models a server's file tree as immutable snapshots.
//
// Every mutating call performs the remote change and then re-lists the
// affected directory to build a fresh *File. The two round trips run in
// order; nothing is locked between them, so a concurrent change to the same
// path surfaces as a *ConsistencyError.
package files

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sheepe/pterogo/pkg/client"
	"github.com/sheepe/pterogo/pkg/protocol"
	"github.com/sheepe/pterogo/pkg/tree"
)

var now = time.Now

// Access is one rwx triple of a mode string.
type Access struct {
	Read    bool
	Write   bool
	Execute bool
}

// File is a snapshot of one node. It is never modified after construction.
type File struct {
	Name        string
	Location    string
	Root        string
	IsDirectory bool
	Size        int64
	Symlink     bool
	Editable    bool
	MimeType    string
	Mode        string
	Owner       Access
	User        Access
	CreatedAt   time.Time
	ModifiedAt  *time.Time
	// FetchedAt is when this snapshot was built, not a server timestamp.
	FetchedAt time.Time

	server Server
}

// newFile builds a node from a listing entry parented at root. An empty
// root is the server root.
func newFile(s Server, attrs protocol.FileAttributes, root string) *File {
	root = tree.TrimTrailingSeparator(root)
	isDir, owner, user := decodeMode(attrs.Mode)

	return &File{
		Name:        attrs.Name,
		Location:    tree.ComposeChildPath(root, attrs.Name),
		Root:        tree.RootDisplay(root),
		IsDirectory: isDir,
		Size:        attrs.Size,
		Symlink:     attrs.IsSymlink,
		Editable:    attrs.IsEditable,
		MimeType:    attrs.MimeType,
		Mode:        attrs.Mode,
		Owner:       owner,
		User:        user,
		CreatedAt:   attrs.CreatedAt,
		ModifiedAt:  attrs.ModifiedAt,
		FetchedAt:   now(),
		server:      s,
	}
}

// decodeMode reads the type flag and the owner and user triples from the
// first seven characters of mode. Missing characters count as '-'.
func decodeMode(mode string) (isDir bool, owner, user Access) {
	at := func(i int) byte {
		if i < len(mode) {
			return mode[i]
		}
		return '-'
	}
	triple := func(off int) Access {
		return Access{
			Read:    at(off) == 'r',
			Write:   at(off+1) == 'w',
			Execute: at(off+2) == 'x',
		}
	}
	return at(0) == 'd', triple(1), triple(4)
}

func (f *File) String() string {
	return f.Location
}

func (f *File) requireDirectory(op string) error {
	if err := requireVerified(f.server, op); err != nil {
		return err
	}
	if !f.IsDirectory {
		return fmt.Errorf("%s %s: %w", op, f.Location, ErrNotDirectory)
	}
	return nil
}

func (f *File) requireFile(op string) error {
	if err := requireVerified(f.server, op); err != nil {
		return err
	}
	if f.IsDirectory {
		return fmt.Errorf("%s %s: %w", op, f.Location, ErrIsDirectory)
	}
	return nil
}

// parent is the raw parent path used for composition.
func (f *File) parent() string {
	return tree.TrimTrailingSeparator(f.Root)
}

// List returns the children of a directory, parented at its location.
func (f *File) List(ctx context.Context) ([]*File, error) {
	if err := f.requireDirectory("list"); err != nil {
		return nil, err
	}
	return listDirectory(ctx, f.server, f.Location)
}

// Read returns the raw contents of a file.
func (f *File) Read(ctx context.Context) ([]byte, error) {
	if err := f.requireFile("read"); err != nil {
		return nil, err
	}
	return readFile(ctx, f.server, f.Location)
}

// Child lists a directory and returns the entry called name. ok is false,
// with a nil error, when no entry matches.
func (f *File) Child(ctx context.Context, name string) (child *File, ok bool, err error) {
	children, err := f.List(ctx)
	if err != nil {
		return nil, false, err
	}
	child, ok = findByName(children, name)
	return child, ok, nil
}

// DownloadURL requests a one-time download link for a file.
func (f *File) DownloadURL(ctx context.Context) (string, error) {
	if err := f.requireFile("download"); err != nil {
		return "", err
	}

	req := client.NewRequest(http.MethodGet, endpoint(f.server, "download")).WithQuery("file", f.Location)
	data, err := f.server.Execute(ctx, req)
	if err != nil {
		return "", err
	}

	var obj protocol.Object[protocol.SignedURLAttributes]
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("parse download link: %w", err)
	}
	return obj.Attributes.URL, nil
}

// Rename renames the node within its root and returns the renamed entry.
// newName may contain separators to move the node below its root.
func (f *File) Rename(ctx context.Context, newName string) (*File, error) {
	if err := requireVerified(f.server, "rename"); err != nil {
		return nil, err
	}

	req, err := client.NewJSONRequest(http.MethodPut, endpoint(f.server, "rename"), protocol.RenameRequest{
		Root:  f.Root,
		Files: []protocol.RenamePair{{From: f.Name, To: newName}},
	})
	if err != nil {
		return nil, err
	}
	if _, err := f.server.Execute(ctx, req, http.StatusNoContent); err != nil {
		return nil, err
	}

	dir, name := tree.SplitParentAndName(tree.ComposeChildPath(f.parent(), newName))
	return relist(ctx, f.server, "rename", dir, name)
}

// Resync re-lists the parent and returns a fresh snapshot of the node. It
// fails with a *ConsistencyError if the node was renamed or removed.
func (f *File) Resync(ctx context.Context) (*File, error) {
	if err := requireVerified(f.server, "resync"); err != nil {
		return nil, err
	}
	return relist(ctx, f.server, "resync", f.parent(), f.Name)
}

// Duplicate copies the node to targetDirectory. An empty newName keeps the
// current name. The copy is not returned; the panel does not report it.
func (f *File) Duplicate(ctx context.Context, targetDirectory, newName string) error {
	if err := requireVerified(f.server, "copy"); err != nil {
		return err
	}
	if newName == "" {
		newName = f.Name
	}

	req, err := client.NewJSONRequest(http.MethodPost, endpoint(f.server, "copy"), protocol.CopyRequest{
		Root:     f.Root,
		Files:    []string{f.Name},
		Location: tree.ComposeChildPath(tree.TrimTrailingSeparator(targetDirectory), newName),
	})
	if err != nil {
		return err
	}
	_, err = f.server.Execute(ctx, req, http.StatusNoContent)
	return err
}

// Write replaces the contents of a file and returns the re-listed entry.
func (f *File) Write(ctx context.Context, contents []byte) (*File, error) {
	if err := f.requireFile("write"); err != nil {
		return nil, err
	}
	return writeFile(ctx, f.server, "write", f.Location, contents)
}

// WriteRelative writes a file at path resolved against the node's root,
// which lets a file create its siblings. A leading separator on path is
// ignored.
func (f *File) WriteRelative(ctx context.Context, path string, contents []byte) (*File, error) {
	if err := f.requireFile("write"); err != nil {
		return nil, err
	}
	return writeFile(ctx, f.server, "write", tree.ComposeChildPath(f.parent(), path), contents)
}

// WriteChild writes a file at path resolved against a directory's own
// location.
func (f *File) WriteChild(ctx context.Context, path string, contents []byte) (*File, error) {
	if err := f.requireDirectory("write child"); err != nil {
		return nil, err
	}
	return writeFile(ctx, f.server, "write child", tree.ComposeChildPath(f.Location, path), contents)
}

// Mkdir creates directory name under location. On a directory, location is
// resolved against its own location; on a file, against its root. An empty
// location means "/".
func (f *File) Mkdir(ctx context.Context, name, location string) (*File, error) {
	if err := requireVerified(f.server, "mkdir"); err != nil {
		return nil, err
	}

	base := f.parent()
	if f.IsDirectory {
		base = f.Location
	}
	if location == "" {
		location = tree.Separator
	}
	parent := tree.TrimTrailingSeparator(tree.ComposeChildPath(base, location))
	return createFolder(ctx, f.server, "mkdir", parent, name)
}

// Compress archives the node in its root and returns the archive the panel
// reports back.
func (f *File) Compress(ctx context.Context) (*File, error) {
	if err := requireVerified(f.server, "compress"); err != nil {
		return nil, err
	}

	req, err := client.NewJSONRequest(http.MethodPost, endpoint(f.server, "compress"), protocol.FilesRequest{
		Root:  f.Root,
		Files: []string{f.Name},
	})
	if err != nil {
		return nil, err
	}
	data, err := f.server.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	var obj protocol.Object[protocol.FileAttributes]
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse archive: %w", err)
	}
	return newFile(f.server, obj.Attributes, f.parent()), nil
}

// Decompress extracts the archive in place. The archive itself is deleted
// only when deleteSelf is true.
func (f *File) Decompress(ctx context.Context, deleteSelf bool) error {
	if err := requireVerified(f.server, "decompress"); err != nil {
		return err
	}

	req, err := client.NewJSONRequest(http.MethodPost, endpoint(f.server, "decompress"), protocol.DecompressRequest{
		Root: f.Root,
		File: f.Name,
	})
	if err != nil {
		return err
	}
	if _, err := f.server.Execute(ctx, req, http.StatusNoContent); err != nil {
		return err
	}

	if !deleteSelf {
		return nil
	}
	return f.Delete(ctx)
}

// Delete removes the node. Other snapshots of it are left untouched.
func (f *File) Delete(ctx context.Context) error {
	if err := requireVerified(f.server, "delete"); err != nil {
		return err
	}

	req, err := client.NewJSONRequest(http.MethodPost, endpoint(f.server, "delete"), protocol.FilesRequest{
		Root:  f.Root,
		Files: []string{f.Name},
	})
	if err != nil {
		return err
	}
	_, err = f.server.Execute(ctx, req, http.StatusNoContent)
	return err
}
