// Package api implements the HTTP gateway to the chat backend. It attaches
// the bearer credential, picks JSON or multipart encoding per payload, and
// maps responses onto domain types and sentinel errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abhishekshukla9956/chatclient/internal/errs"
	"github.com/abhishekshukla9956/chatclient/internal/model"
)

// SessionProvider yields the active session for outbound authentication.
// *session.Store satisfies it.
type SessionProvider interface {
	Current() (model.Session, bool)
}

// Client is the chat API gateway.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions SessionProvider
	log      *zap.Logger
}

// New constructs a gateway against baseURL (no trailing slash).
func New(baseURL string, sessions SessionProvider, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		sessions: sessions,
		log:      log,
	}
}

// ---- wire types ----

type loginResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Tokens   struct {
		Access  string `json:"access"`
		Refresh string `json:"refresh"`
	} `json:"tokens"`
}

type wireMessage struct {
	ID               int64   `json:"id"`
	Sender           int64   `json:"sender"`
	Receiver         int64   `json:"receiver"`
	SenderUsername   string  `json:"sender_username"`
	ReceiverUsername string  `json:"receiver_username"`
	Text             *string `json:"text"`
	File             *string `json:"file"`
	FileURL          *string `json:"file_url"`
	DownloadURL      *string `json:"download_url"`
	Timestamp        string  `json:"timestamp"`
}

func (w wireMessage) toModel() model.Message {
	m := model.Message{
		ID:               w.ID,
		SenderID:         w.Sender,
		ReceiverID:       w.Receiver,
		SenderUsername:   w.SenderUsername,
		ReceiverUsername: w.ReceiverUsername,
	}
	if w.Text != nil {
		m.Text = *w.Text
	}
	if w.FileURL != nil && *w.FileURL != "" {
		ref := &model.FileRef{URL: *w.FileURL}
		if w.DownloadURL != nil {
			ref.DownloadURL = *w.DownloadURL
		}
		if w.File != nil {
			ref.Name = *w.File
		}
		m.File = ref
	}
	if ts, err := time.Parse(time.RFC3339Nano, w.Timestamp); err == nil {
		m.Timestamp = ts
	}
	return m
}

// ---- auth ----

// Login authenticates and returns a fresh session. Does not persist it;
// that is the caller's (session store's) job.
func (c *Client) Login(ctx context.Context, username, password string) (model.Session, error) {
	if username == "" || password == "" {
		return model.Session{}, fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	var out loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/login/", body, false, &out); err != nil {
		return model.Session{}, err
	}
	return model.Session{
		Token: out.Tokens.Access,
		User:  model.User{ID: out.UserID, Username: out.Username},
	}, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, username, password string) (model.User, error) {
	if username == "" || password == "" {
		return model.User{}, fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	var out model.User
	if err := c.doJSON(ctx, http.MethodPost, "/register/", body, false, &out); err != nil {
		return model.User{}, err
	}
	return out, nil
}

// ---- messages ----

// ListMessages fetches the full ordered thread against peerID.
func (c *Client) ListMessages(ctx context.Context, peerID int64) ([]model.Message, error) {
	var wires []wireMessage
	p := "/messages/?user_id=" + strconv.FormatInt(peerID, 10)
	if err := c.doJSON(ctx, http.MethodGet, p, nil, true, &wires); err != nil {
		return nil, err
	}
	msgs := make([]model.Message, len(wires))
	for i, w := range wires {
		msgs[i] = w.toModel()
	}
	return msgs, nil
}

// CreateMessage sends a new message. The body is always multipart because the
// backend create endpoint accepts form data whether or not a file rides along.
// Not safe to retry: a duplicate request duplicates the message.
func (c *Client) CreateMessage(ctx context.Context, receiverID int64, text string, file *model.Upload) (model.Message, error) {
	if strings.TrimSpace(text) == "" && file == nil {
		return model.Message{}, fmt.Errorf("%w: empty message", errs.ErrValidation)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("receiver", strconv.FormatInt(receiverID, 10))
	if strings.TrimSpace(text) != "" {
		_ = mw.WriteField("text", text)
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", file.Name)
		if err != nil {
			return model.Message{}, err
		}
		if _, err := fw.Write(file.Data); err != nil {
			return model.Message{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return model.Message{}, err
	}

	var out wireMessage
	if err := c.do(ctx, http.MethodPost, "/messages/", &buf, mw.FormDataContentType(), true, &out); err != nil {
		return model.Message{}, err
	}
	return out.toModel(), nil
}

// EditMessage replaces the text of an owned message and returns the server's
// authoritative representation.
func (c *Client) EditMessage(ctx context.Context, id int64, text string) (model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return model.Message{}, fmt.Errorf("%w: empty text", errs.ErrValidation)
	}
	body, _ := json.Marshal(map[string]string{"text": text})
	var out wireMessage
	p := fmt.Sprintf("/messages/%d/edit/", id)
	if err := c.doJSON(ctx, http.MethodPatch, p, body, true, &out); err != nil {
		return model.Message{}, err
	}
	return out.toModel(), nil
}

// DeleteMessage deletes an owned message. Safe to retry.
func (c *Client) DeleteMessage(ctx context.Context, id int64) error {
	p := fmt.Sprintf("/messages/%d/delete/", id)
	return c.doJSON(ctx, http.MethodDelete, p, nil, true, nil)
}

// ---- users & profile ----

// ListUsers returns all other accounts (the backend already excludes self).
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := c.doJSON(ctx, http.MethodGet, "/users/", nil, true, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchProfile returns the current user's profile.
func (c *Client) FetchProfile(ctx context.Context) (model.Profile, error) {
	var out model.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/profile/", nil, true, &out); err != nil {
		return model.Profile{}, err
	}
	return out, nil
}

// UpdateProfile patches username and/or profile picture. Multipart when a
// picture is present, JSON otherwise.
func (c *Client) UpdateProfile(ctx context.Context, username string, pic *model.Upload) (model.Profile, error) {
	if username == "" && pic == nil {
		return model.Profile{}, fmt.Errorf("%w: nothing to update", errs.ErrValidation)
	}
	var out model.Profile

	if pic == nil {
		body, _ := json.Marshal(map[string]string{"username": username})
		if err := c.doJSON(ctx, http.MethodPatch, "/profile/", body, true, &out); err != nil {
			return model.Profile{}, err
		}
		return out, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if username != "" {
		_ = mw.WriteField("username", username)
	}
	fw, err := mw.CreateFormFile("profile_pic", pic.Name)
	if err != nil {
		return model.Profile{}, err
	}
	if _, err := fw.Write(pic.Data); err != nil {
		return model.Profile{}, err
	}
	if err := mw.Close(); err != nil {
		return model.Profile{}, err
	}
	if err := c.do(ctx, http.MethodPatch, "/profile/", &buf, mw.FormDataContentType(), true, &out); err != nil {
		return model.Profile{}, err
	}
	return out, nil
}

// ---- attachments ----

// FetchAttachment performs an authenticated GET of an absolute URL and
// returns the body stream plus a suggested filename (Content-Disposition,
// falling back to the URL path base).
func (c *Client) FetchAttachment(ctx context.Context, rawURL string) (io.ReadCloser, string, error) {
	sess, ok := c.sessions.Current()
	if !ok {
		return nil, "", errs.ErrUnauthenticated
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+sess.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, "", c.statusErr(resp)
	}

	name := ""
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			name = params["filename"]
		}
	}
	if name == "" {
		if u, err := url.Parse(rawURL); err == nil {
			if b := path.Base(u.Path); b != "." && b != "/" {
				name = b
			}
		}
	}
	if name == "" {
		name = "file"
	}
	return resp.Body, name, nil
}

// ---- plumbing ----

func (c *Client) doJSON(ctx context.Context, method, p string, body []byte, authed bool, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	return c.do(ctx, method, p, r, "application/json", authed, out)
}

func (c *Client) do(ctx context.Context, method, p string, body io.Reader, contentType string, authed bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if authed {
		sess, ok := c.sessions.Current()
		if !ok {
			return errs.ErrUnauthenticated
		}
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	c.log.Debug("http",
		zap.String("method", method),
		zap.String("path", p),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return c.statusErr(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, p, err)
	}
	return nil
}

// statusErr maps an error response onto the sentinel taxonomy, carrying the
// server's detail text when it provides one.
func (c *Client) statusErr(resp *http.Response) error {
	detail := ""
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(b, &payload) == nil {
		detail = payload.Detail
	}

	var base error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		base = errs.ErrUnauthenticated
	case http.StatusNotFound:
		base = errs.ErrNotFound
	default:
		base = errs.ErrServerRejected
	}
	if detail != "" {
		return fmt.Errorf("%w: %d %s", base, resp.StatusCode, detail)
	}
	return fmt.Errorf("%w: %d", base, resp.StatusCode)
}
