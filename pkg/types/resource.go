// Package types holds the wire types shared by the resource daemon and
// its Go client SDK.
package types

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Status string `json:"status"`
}

// EntryInfo describes a file or directory entry inside the sandbox.
type EntryInfo struct {
	Name  string `json:"name"`
	IsDir bool   `json:"isDir"`
	Size  int64  `json:"size,omitempty"`
	Path  string `json:"path"`
}

// ErrorResponse is the JSON body of a non-2xx resource daemon reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
