// Package attach decides how a message attachment is rendered and handles
// the credential-gated download path.
package attach

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/abhishekshukla9956/chatclient/internal/errs"
	"github.com/abhishekshukla9956/chatclient/internal/model"
)

// RenderMode tells the UI how to present an attachment.
type RenderMode int

const (
	// RenderNone: message has no attachment.
	RenderNone RenderMode = iota
	// RenderImage: show inline from FileRef.URL.
	RenderImage
	// RenderLink: present as an external link (PDFs).
	RenderLink
)

// Fetcher is the authenticated byte-fetch the resolver needs from the
// gateway.
type Fetcher interface {
	FetchAttachment(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// View is the resolved render plan for one message's attachment.
type View struct {
	Mode RenderMode
	// URL renders inline (image) or opens externally (pdf).
	URL string
	// Downloadable is set for non-owned attachments that expose an
	// authenticated download endpoint. Render URLs may be public and
	// cacheable; the raw bytes are credential-gated on purpose.
	Downloadable bool
}

// Resolver materializes attachments into local files.
type Resolver struct {
	fetcher Fetcher
	log     *zap.Logger
}

// New constructs a resolver downloading through fetcher.
func New(fetcher Fetcher, log *zap.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, log: log}
}

// Resolve returns the render plan for msg as seen by user selfID.
func (r *Resolver) Resolve(msg model.Message, selfID int64) View {
	if msg.File == nil {
		return View{Mode: RenderNone}
	}
	v := View{URL: msg.File.URL}
	switch msg.File.Kind() {
	case model.FilePDF:
		v.Mode = RenderLink
	default:
		v.Mode = RenderImage
	}
	v.Downloadable = msg.SenderID != selfID && msg.File.DownloadURL != ""
	return v
}

// Download fetches msg's attachment through the authenticated endpoint and
// writes it under dir, named after the stored file's final path segment.
// Returns the written path.
func (r *Resolver) Download(ctx context.Context, msg model.Message, dir string) (string, error) {
	if msg.File == nil || msg.File.DownloadURL == "" {
		return "", fmt.Errorf("%w: message has no downloadable file", errs.ErrValidation)
	}

	body, suggested, err := r.fetcher.FetchAttachment(ctx, msg.File.DownloadURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	name := msg.File.Basename()
	if name == "file" && suggested != "" {
		name = suggested
	}
	dst := filepath.Join(dir, filepath.Base(name))

	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	r.log.Info("attachment saved", zap.Int64("msg", msg.ID), zap.String("path", dst))
	return dst, nil
}
