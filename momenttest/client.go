package momenttest

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-moment-client/device"
	"github.com/jrsteele09/go-moment-client/httpclient"
	"github.com/jrsteele09/go-moment-client/token/refresh"
	tokenfakerepo "github.com/jrsteele09/go-moment-client/token/repofake"
)

// Identity is the device identity used by clients built with NewClient.
var Identity = device.Identity{Hash: "momenttest-device"}

// NewClient returns an authenticated client for s backed by an in-memory
// store. When loggedIn is set the store holds a pair the server accepts.
func (s *Server) NewClient(tb testing.TB, loggedIn bool) (*httpclient.Client, *tokenfakerepo.FakeTokenStore) {
	tb.Helper()
	store := tokenfakerepo.NewFakeTokenStore()
	if loggedIn {
		if err := store.Save(context.Background(), s.IssuePair()); err != nil {
			tb.Fatalf("save pair: %v", err)
		}
	}
	refresher := refresh.NewRefresher(s.URL, store, Identity)
	client, err := httpclient.New(s.URL, store, Identity, refresher, httpclient.WithTimeout(5*time.Second))
	if err != nil {
		tb.Fatalf("new client: %v", err)
	}
	return client, store
}
