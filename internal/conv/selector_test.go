package conv

import (
	"context"
	"errors"
	"testing"

	"github.com/abhishekshukla9956/chatclient/internal/errs"
	"github.com/abhishekshukla9956/chatclient/internal/model"
)

type fakeLister struct {
	out []model.User
	err error
}

func (f *fakeLister) ListUsers(context.Context) ([]model.User, error) {
	return append([]model.User(nil), f.out...), f.err
}

type fakeOpener struct {
	started []int64
	stops   int
}

func (f *fakeOpener) Start(peerID int64) { f.started = append(f.started, peerID) }
func (f *fakeOpener) Stop()              { f.stops++ }

func TestRefresh_FiltersSelf(t *testing.T) {
	t.Parallel()
	lister := &fakeLister{out: []model.User{{ID: 7, Username: "me"}, {ID: 3, Username: "peer"}}}
	s := New(lister, &fakeOpener{}, 7)

	users, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(users) != 1 || users[0].ID != 3 {
		t.Fatalf("self must be filtered out, got %+v", users)
	}
}

func TestRefresh_ErrorPropagates(t *testing.T) {
	t.Parallel()
	s := New(&fakeLister{err: errors.New("boom")}, &fakeOpener{}, 7)
	if _, err := s.Refresh(context.Background()); err == nil {
		t.Fatalf("want lister error to propagate")
	}
}

func TestSelect_StartsThread(t *testing.T) {
	t.Parallel()
	opener := &fakeOpener{}
	s := New(&fakeLister{out: []model.User{{ID: 3, Username: "peer"}}}, opener, 7)
	if _, err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if err := s.Select(3); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(opener.started) != 1 || opener.started[0] != 3 {
		t.Fatalf("selecting must start the engine for the peer, got %v", opener.started)
	}
	sel, ok := s.Selected()
	if !ok || sel.ID != 3 {
		t.Fatalf("Selected mismatch: %+v ok=%v", sel, ok)
	}
}

func TestSelect_SamePeerNoRestart(t *testing.T) {
	t.Parallel()
	opener := &fakeOpener{}
	s := New(&fakeLister{out: []model.User{{ID: 3}}}, opener, 7)
	_, _ = s.Refresh(context.Background())

	_ = s.Select(3)
	_ = s.Select(3)
	if len(opener.started) != 1 {
		t.Fatalf("reselecting the open peer must not restart the loop, got %v", opener.started)
	}
}

func TestSelect_SwitchRestarts(t *testing.T) {
	t.Parallel()
	opener := &fakeOpener{}
	s := New(&fakeLister{out: []model.User{{ID: 3}, {ID: 4}}}, opener, 7)
	_, _ = s.Refresh(context.Background())

	_ = s.Select(3)
	_ = s.Select(4)
	if len(opener.started) != 2 || opener.started[1] != 4 {
		t.Fatalf("switching peers must start the new thread, got %v", opener.started)
	}
}

func TestSelect_UnknownPeer(t *testing.T) {
	t.Parallel()
	s := New(&fakeLister{out: []model.User{{ID: 3}}}, &fakeOpener{}, 7)
	_, _ = s.Refresh(context.Background())

	if err := s.Select(99); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestClose_StopsThread(t *testing.T) {
	t.Parallel()
	opener := &fakeOpener{}
	s := New(&fakeLister{out: []model.User{{ID: 3}}}, opener, 7)
	_, _ = s.Refresh(context.Background())
	_ = s.Select(3)

	s.Close()
	if opener.stops != 1 {
		t.Fatalf("close must stop the engine")
	}
	if _, ok := s.Selected(); ok {
		t.Fatalf("no peer must remain selected after close")
	}
}
