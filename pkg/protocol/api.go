// Package protocol defines the panel API request/response types.
package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Object is the {object, attributes} envelope every panel resource uses.
type Object[T any] struct {
	Object     string `json:"object"`
	Attributes T      `json:"attributes"`
}

// List is the {object: "list", data: [...]} envelope.
type List[T any] struct {
	Object string      `json:"object"`
	Data   []Object[T] `json:"data"`
}

// FileAttributes is a file_object as returned by GET /servers/{id}/files/list
// and POST /servers/{id}/files/compress.
type FileAttributes struct {
	Name       string     `json:"name"`
	Mode       string     `json:"mode"`
	ModeBits   string     `json:"mode_bits,omitempty"`
	Size       int64      `json:"size"`
	IsFile     bool       `json:"is_file"`
	IsSymlink  bool       `json:"is_symlink"`
	IsEditable bool       `json:"is_editable"`
	MimeType   string     `json:"mimetype"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at"`
}

// SignedURLAttributes is returned by GET /servers/{id}/files/download.
type SignedURLAttributes struct {
	URL string `json:"url"`
}

// Account is returned by GET /account.
type Account struct {
	ID        int    `json:"id"`
	Admin     bool   `json:"admin"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Language  string `json:"language"`
}

// ServerAttributes is returned by GET /servers/{id}.
type ServerAttributes struct {
	Identifier  string `json:"identifier"`
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Node        string `json:"node"`
	Description string `json:"description"`
	IsOwner     bool   `json:"server_owner"`
}

// RenamePair is one entry of RenameRequest.Files.
type RenamePair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// RenameRequest is the body for PUT /servers/{id}/files/rename.
type RenameRequest struct {
	Root  string       `json:"root"`
	Files []RenamePair `json:"files"`
}

// FilesRequest is the body for delete and compress.
type FilesRequest struct {
	Root  string   `json:"root"`
	Files []string `json:"files"`
}

// CopyRequest is the body for POST /servers/{id}/files/copy. Root and Files
// name the source; Location is the full path of the copy.
type CopyRequest struct {
	Root     string   `json:"root"`
	Files    []string `json:"files"`
	Location string   `json:"location"`
}

// CreateFolderRequest is the body for POST /servers/{id}/files/create-folder.
type CreateFolderRequest struct {
	Root string `json:"root"`
	Name string `json:"name"`
}

// DecompressRequest is the body for POST /servers/{id}/files/decompress.
type DecompressRequest struct {
	Root string `json:"root"`
	File string `json:"file"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Errors []ErrorItem `json:"errors"`
}

// First returns the detail of the first error, or nil.
func (r ErrorResponse) First() ErrorDetail {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0].Detail
}

// ErrorDetail is one of StatusErrorDetail or SourceErrorDetail.
type ErrorDetail interface {
	errorDetail()
}

// StatusErrorDetail is the {code, status, detail} shape of HTTP exceptions.
type StatusErrorDetail struct {
	Code   string
	Status string
	Detail string
}

// SourceErrorDetail is the {code, source, detail} shape of validation failures.
// Source is kept as received.
type SourceErrorDetail struct {
	Code   string
	Source json.RawMessage
	Detail string
}

// Field returns source.field, or "" when source is not an object naming one.
func (d SourceErrorDetail) Field() string {
	var src struct {
		Field string `json:"field"`
	}
	if err := json.Unmarshal(d.Source, &src); err != nil {
		return ""
	}
	return src.Field
}

func (StatusErrorDetail) errorDetail() {}
func (SourceErrorDetail) errorDetail() {}

// ErrorItem holds a decoded error element. Detail is nil when the element
// matches neither shape.
type ErrorItem struct {
	Detail ErrorDetail
}

type rawErrorItem struct {
	Code   string           `json:"code"`
	Status json.RawMessage  `json:"status"`
	Source json.RawMessage `json:"source"`
	Detail string           `json:"detail"`
}

// UnmarshalJSON picks the variant from the fields present on the element.
func (e *ErrorItem) UnmarshalJSON(data []byte) error {
	var raw rawErrorItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Code != "" && present(raw.Status):
		e.Detail = StatusErrorDetail{Code: raw.Code, Status: flexString(raw.Status), Detail: raw.Detail}
	case raw.Code != "" && present(raw.Source):
		e.Detail = SourceErrorDetail{Code: raw.Code, Source: raw.Source, Detail: raw.Detail}
	default:
		e.Detail = nil
	}
	return nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// flexString renders a JSON string or number as text.
func flexString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strconv.Quote(string(raw))
}
