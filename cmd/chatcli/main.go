// Command chatcli is a CLI client for the chat backend: it logs in, lists
// conversation partners, and keeps a live view of one thread by polling.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abhishekshukla9956/chatclient/internal/api"
	"github.com/abhishekshukla9956/chatclient/internal/attach"
	"github.com/abhishekshukla9956/chatclient/internal/config"
	"github.com/abhishekshukla9956/chatclient/internal/conv"
	"github.com/abhishekshukla9956/chatclient/internal/model"
	"github.com/abhishekshukla9956/chatclient/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `chatcli
Usage:
  chatcli [-config file] [-v] <cmd> [args]

Commands:
  version
  register    -u <username> -p <password>
  login       -u <username> -p <password>          (saves session)
  logout
  users
  send        -to <user-id> [-text <msg>] [-file <path>]
  watch       -peer <user-id>                      (live thread; stdin to send)
  download    -peer <user-id> -id <msg-id> [-dir <dir>]
  profile
  profile-set [-name <username>] [-pic <path>]
`)
	os.Exit(2)
}

// app bundles the wired components handed to subcommands.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	sessions *session.Store
	gw       *api.Client
}

func (a *app) mustSession() model.Session {
	sess, ok := a.sessions.Current()
	if !ok {
		fmt.Fprintln(os.Stderr, "no active session (login required)")
		os.Exit(1)
	}
	return sess
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func main() {
	cfgPath := flag.String("config", filepath.Join(config.DefaultStateDir(), "config.yaml"), "config file")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	if cmd == "version" {
		fmt.Printf("chatcli %s (%s)\n", version, buildDate)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail(err)
	}

	var logger *zap.Logger
	if *verbose {
		logger, _ = zap.NewDevelopment()
	} else {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	store, err := session.Open(cfg.StateDir, logger)
	if err != nil {
		fail(err)
	}
	defer store.Close()

	a := &app{
		cfg:      cfg,
		log:      logger,
		sessions: store,
		gw:       api.New(cfg.BaseURL, store, cfg.HTTPTimeout, logger),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()

	switch cmd {
	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		user, err := a.gw.Register(ctx, *u, *p)
		if err != nil {
			fail(err)
		}
		fmt.Println(user.ID)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		u := fs.String("u", "", "username")
		p := fs.String("p", "", "password")
		_ = fs.Parse(flag.Args()[1:])
		if *u == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -u and -p")
			os.Exit(1)
		}
		sess, err := a.gw.Login(ctx, *u, *p)
		if err != nil {
			fail(err)
		}
		if err := store.Save(sess); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "logout":
		if err := store.Clear(); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "users":
		sess := a.mustSession()
		sel := conv.New(a.gw, nopOpener{}, sess.User.ID)
		users, err := sel.Refresh(ctx)
		if err != nil {
			fail(err)
		}
		for _, u := range users {
			fmt.Printf("%d\t%s\n", u.ID, u.Username)
		}

	case "send":
		fs := flag.NewFlagSet("send", flag.ExitOnError)
		to := fs.Int64("to", 0, "receiver user id")
		text := fs.String("text", "", "message text")
		file := fs.String("file", "", "attachment path")
		_ = fs.Parse(flag.Args()[1:])
		if *to == 0 || (*text == "" && *file == "") {
			fmt.Fprintln(os.Stderr, "need -to and one of -text/-file")
			os.Exit(1)
		}
		a.mustSession()
		var up *model.Upload
		if *file != "" {
			data, err := os.ReadFile(*file)
			if err != nil {
				fail(err)
			}
			up = &model.Upload{Name: filepath.Base(*file), Data: data}
		}
		msg, err := a.gw.CreateMessage(ctx, *to, *text, up)
		if err != nil {
			fail(err)
		}
		fmt.Println(msg.ID)

	case "watch":
		fs := flag.NewFlagSet("watch", flag.ExitOnError)
		peer := fs.Int64("peer", 0, "peer user id")
		_ = fs.Parse(flag.Args()[1:])
		if *peer == 0 {
			fmt.Fprintln(os.Stderr, "need -peer")
			os.Exit(1)
		}
		a.watch(*peer)

	case "download":
		fs := flag.NewFlagSet("download", flag.ExitOnError)
		peer := fs.Int64("peer", 0, "peer user id")
		id := fs.Int64("id", 0, "message id")
		dir := fs.String("dir", cfg.DownloadDir, "target directory")
		_ = fs.Parse(flag.Args()[1:])
		if *peer == 0 || *id == 0 {
			fmt.Fprintln(os.Stderr, "need -peer and -id")
			os.Exit(1)
		}
		a.mustSession()
		msgs, err := a.gw.ListMessages(ctx, *peer)
		if err != nil {
			fail(err)
		}
		res := attach.New(a.gw, logger)
		for _, m := range msgs {
			if m.ID == *id {
				path, err := res.Download(ctx, m, *dir)
				if err != nil {
					fail(err)
				}
				fmt.Println(path)
				return
			}
		}
		fmt.Fprintln(os.Stderr, "message not found in thread")
		os.Exit(1)

	case "profile":
		a.mustSession()
		p, err := a.gw.FetchProfile(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Printf("username: %s\npicture:  %s\n", p.Username, p.ProfilePic)

	case "profile-set":
		fs := flag.NewFlagSet("profile-set", flag.ExitOnError)
		name := fs.String("name", "", "new username")
		pic := fs.String("pic", "", "picture path")
		_ = fs.Parse(flag.Args()[1:])
		if *name == "" && *pic == "" {
			fmt.Fprintln(os.Stderr, "need -name or -pic")
			os.Exit(1)
		}
		a.mustSession()
		var up *model.Upload
		if *pic != "" {
			data, err := os.ReadFile(*pic)
			if err != nil {
				fail(err)
			}
			up = &model.Upload{Name: filepath.Base(*pic), Data: data}
		}
		p, err := a.gw.UpdateProfile(ctx, *name, up)
		if err != nil {
			fail(err)
		}
		fmt.Printf("username: %s\npicture:  %s\n", p.Username, p.ProfilePic)

	default:
		usage()
	}
}

// nopOpener satisfies conv.ThreadOpener for commands that never open a thread.
type nopOpener struct{}

func (nopOpener) Start(int64) {}
func (nopOpener) Stop()       {}

// serveMetrics exposes prometheus counters while watch mode runs.
func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
