// Package model defines domain entities shared by the gateway, the sync
// engine and the CLI.
package model

import (
	"path"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Session is the logged-in identity plus its bearer credential. Exactly one
// Session is active per process; every authenticated request carries Token.
type Session struct {
	Token string `json:"access_token"`
	User  User   `json:"user"`
}

// User is a conversation partner (or the current user) as returned by the
// user-list endpoint.
type User struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profile_pic,omitempty"`
}

// Profile is the current user's editable profile.
type Profile struct {
	Username   string `json:"username"`
	ProfilePic string `json:"profile_pic"`
}

// FileKind classifies an attachment for rendering.
type FileKind string

const (
	FileImage FileKind = "image"
	FilePDF   FileKind = "pdf"
)

// FileRef points at an attachment. URL is the directly renderable location;
// DownloadURL requires bearer auth and serves the raw bytes as a download.
// Name is the server-side stored path (e.g. "uploads/report.pdf").
type FileRef struct {
	URL         string
	DownloadURL string
	Name        string
}

// Kind derives the render classification from the stored path extension.
// Anything that is not a PDF is treated as an image, matching the backend's
// upload constraints.
func (f FileRef) Kind() FileKind {
	p := f.Name
	if p == "" {
		p = f.URL
	}
	if strings.EqualFold(path.Ext(p), ".pdf") {
		return FilePDF
	}
	return FileImage
}

// Basename returns the final path segment of the stored file, or "file" when
// none can be derived. Used as the default download filename.
func (f FileRef) Basename() string {
	if f.Name == "" {
		return "file"
	}
	if b := path.Base(f.Name); b != "." && b != "/" {
		return b
	}
	return "file"
}

// Message is a server-confirmed message. ID is assigned by the server and
// stable; thread order is the list endpoint's order.
type Message struct {
	ID               int64     `json:"id"`
	SenderID         int64     `json:"sender"`
	ReceiverID       int64     `json:"receiver"`
	SenderUsername   string    `json:"sender_username"`
	ReceiverUsername string    `json:"receiver_username"`
	Text             string    `json:"text"`
	File             *FileRef  `json:"-"`
	Timestamp        time.Time `json:"timestamp"`
}

// Upload is a file staged for sending, decoupled from the filesystem so the
// engine and gateway can be tested without disk I/O.
type Upload struct {
	Name string
	Data []byte
}

// PendingMessage is a locally created message awaiting server confirmation.
// It carries no server ID; LocalKey identifies it across the optimistic
// append and the in-place confirmation.
type PendingMessage struct {
	LocalKey uuid.UUID
	PeerID   int64
	Text     string
	File     *Upload
	SentAt   time.Time
}

// ThreadEntry is one row of a thread view: either a confirmed Message or a
// PendingMessage, never both.
type ThreadEntry struct {
	Msg     *Message
	Pending *PendingMessage
}

// Confirmed reports whether the entry carries a server-assigned message.
func (e ThreadEntry) Confirmed() bool { return e.Msg != nil }

// Thread is the merged view of one open conversation.
type Thread struct {
	PeerID       int64
	Entries      []ThreadEntry
	LastSyncedAt time.Time
}
