package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/abhishekshukla9956/chatclient/internal/attach"
	"github.com/abhishekshukla9956/chatclient/internal/conv"
	"github.com/abhishekshukla9956/chatclient/internal/engine"
	"github.com/abhishekshukla9956/chatclient/internal/model"
)

// watch runs the live thread view: the engine polls in the background while
// stdin feeds mutations. Lines starting with "/" are commands, anything else
// is sent as a message.
func (a *app) watch(peerID int64) {
	sess := a.mustSession()

	eng := engine.New(a.gw, a.cfg.PollInterval, a.log)
	res := attach.New(a.gw, a.log)

	renderer := &threadRenderer{selfID: sess.User.ID, res: res}
	eng.OnChange = renderer.render
	eng.OnFailure = func(op string, err error) {
		fmt.Fprintf(os.Stderr, "! %s failed: %v\n", op, err)
	}

	sel := conv.New(a.gw, eng, sess.User.ID)
	if _, err := sel.Refresh(context.Background()); err != nil {
		fail(err)
	}
	if err := sel.Select(peerID); err != nil {
		fail(fmt.Errorf("select peer %d: %w", peerID, err))
	}
	defer sel.Close()

	if a.cfg.MetricsAddr != "" {
		serveMetrics(a.cfg.MetricsAddr, a.log)
	}

	peer, _ := sel.Selected()
	fmt.Printf("-- chatting with %s (%d); /help for commands --\n", peer.Username, peer.ID)

	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case line == "/q" || line == "/quit":
			return
		case line == "/help":
			fmt.Println("/edit <id> <text>  /rm <id>  /download <id>  /peer <id>  /q")
		case strings.HasPrefix(line, "/edit "):
			id, rest, ok := parseIDArg(strings.TrimPrefix(line, "/edit "))
			if !ok || rest == "" {
				fmt.Fprintln(os.Stderr, "usage: /edit <id> <text>")
				continue
			}
			if err := eng.Edit(id, rest); err != nil {
				fmt.Fprintf(os.Stderr, "! %v\n", err)
			}
		case strings.HasPrefix(line, "/rm "):
			id, _, ok := parseIDArg(strings.TrimPrefix(line, "/rm "))
			if !ok {
				fmt.Fprintln(os.Stderr, "usage: /rm <id>")
				continue
			}
			eng.Delete(id)
		case strings.HasPrefix(line, "/download "):
			id, _, ok := parseIDArg(strings.TrimPrefix(line, "/download "))
			if !ok {
				fmt.Fprintln(os.Stderr, "usage: /download <id>")
				continue
			}
			a.downloadFromSnapshot(eng.Snapshot(), res, id)
		case strings.HasPrefix(line, "/peer "):
			id, _, ok := parseIDArg(strings.TrimPrefix(line, "/peer "))
			if !ok {
				fmt.Fprintln(os.Stderr, "usage: /peer <id>")
				continue
			}
			if err := sel.Select(id); err != nil {
				fmt.Fprintf(os.Stderr, "! %v\n", err)
			}
		case strings.HasPrefix(line, "/"):
			fmt.Fprintln(os.Stderr, "unknown command; /help")
		default:
			if err := eng.Send(line, nil); err != nil {
				fmt.Fprintf(os.Stderr, "! %v\n", err)
			}
		}
	}
}

func (a *app) downloadFromSnapshot(t model.Thread, res *attach.Resolver, id int64) {
	for _, entry := range t.Entries {
		if entry.Msg != nil && entry.Msg.ID == id {
			path, err := res.Download(context.Background(), *entry.Msg, a.cfg.DownloadDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "! %v\n", err)
				return
			}
			fmt.Printf("saved %s\n", path)
			return
		}
	}
	fmt.Fprintln(os.Stderr, "no such confirmed message in thread")
}

func parseIDArg(s string) (int64, string, bool) {
	s = strings.TrimSpace(s)
	idStr, rest, _ := strings.Cut(s, " ")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, strings.TrimSpace(rest), true
}

// threadRenderer reprints the thread whenever the engine's view changes.
type threadRenderer struct {
	selfID int64
	res    *attach.Resolver
}

func (r *threadRenderer) render(t model.Thread) {
	fmt.Printf("\n-- thread with %d (%d entries) --\n", t.PeerID, len(t.Entries))
	for _, entry := range t.Entries {
		switch {
		case entry.Msg != nil:
			m := entry.Msg
			who := m.SenderUsername
			if m.SenderID == r.selfID {
				who = "me"
			}
			line := fmt.Sprintf("[%d] %s: %s", m.ID, who, m.Text)
			if m.File != nil {
				view := r.res.Resolve(*m, r.selfID)
				switch view.Mode {
				case attach.RenderImage:
					line += fmt.Sprintf(" (image %s)", m.File.Basename())
				case attach.RenderLink:
					line += fmt.Sprintf(" (pdf %s)", m.File.Basename())
				}
				if view.Downloadable {
					line += " [/download]"
				}
			}
			fmt.Println(line)
		case entry.Pending != nil:
			fmt.Printf("[...] me: %s (sending)\n", entry.Pending.Text)
		}
	}
}
