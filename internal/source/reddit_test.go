package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func redditServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "cid" || secret != "csecret" {
			http.Error(w, "bad client", http.StatusUnauthorized)
			return
		}
		if r.FormValue("grant_type") != "refresh_token" || r.FormValue("refresh_token") != "rt" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	})
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok" || r.Header.Get("User-Agent") != "test-agent" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/api/v1/me", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"SomeUser"}`))
	}))
	mux.HandleFunc("/message/unread", authed(func(w http.ResponseWriter, r *http.Request) {
		var page map[string]any
		if r.URL.Query().Get("after") == "" {
			page = listing("t4_b",
				thing(map[string]any{"id": "a", "name": "t4_a", "first_message_name": "t4_root", "subject": "hi",
					"created_utc": 1700000000.0, "author": "alice", "body": "first", "was_comment": false}),
				thing(map[string]any{"id": "b", "name": "t4_b", "first_message_name": "t4_root", "subject": "hi",
					"created_utc": 1700000100.0, "author": "bob", "body": "second", "was_comment": false}),
			)
		} else {
			page = listing("",
				thing(map[string]any{"id": "c", "name": "t1_c", "parent_id": "t1_p", "subject": "comment reply",
					"created_utc": 1700000200.0, "author": nil, "distinguished": "moderator", "body": "nice",
					"subreddit": "golang", "was_comment": true, "context": "/r/golang/comments/x/y/c/?context=3"}),
				thing(map[string]any{"id": "d", "name": "t1_d", "subject": "comment reply",
					"created_utc": 1700000300.0, "author": "alice", "body": "again", "was_comment": true,
					"context": "/r/golang/comments/x/y/d/?context=3"}),
			)
		}
		json.NewEncoder(w).Encode(page)
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func listing(after string, children ...map[string]any) map[string]any {
	var a any
	if after != "" {
		a = after
	}
	return map[string]any{"kind": "Listing", "data": map[string]any{"after": a, "children": children}}
}

func thing(data map[string]any) map[string]any {
	return map[string]any{"kind": "t4", "data": data}
}

func TestRedditSource_Fetch(t *testing.T) {
	srv := redditServer(t)
	src := NewRedditSource(RedditOptions{
		Accounts:  []RedditAccount{{ClientID: "cid", ClientSecret: "csecret", RefreshToken: "rt"}},
		APIURL:    srv.URL,
		TokenURL:  srv.URL + "/api/v1/access_token",
		UserAgent: "test-agent",
	}, nil)
	require.Equal(t, []string{"reddit-1"}, src.Accounts())

	b, err := src.Fetch(context.Background(), "reddit-1")
	require.NoError(t, err)

	require.Equal(t, "SomeUser", b.Account)
	require.Equal(t, 4, b.UnreadCount)
	require.Len(t, b.Raw, 4)
	require.Equal(t, []string{"alice", "bob", "moderator"}, b.ExplicitSenders)

	msgA, msgB, comC := b.Raw[0], b.Raw[1], b.Raw[2]
	require.Equal(t, "t4_root", msgA.ConversationID)
	require.Equal(t, msgA.ConversationID, msgB.ConversationID)
	require.Equal(t, "message", b.Kinds["t4_root"])
	require.Equal(t, "https://www.reddit.com/message/messages/a", msgA.Link)
	require.Equal(t, 1700000000.0, msgA.Timestamp.Unix)

	require.Equal(t, "c", comC.ConversationID)
	require.Equal(t, "comment", b.Kinds["c"])
	require.Equal(t, "r/golang", comC.Title)
	require.Equal(t, "moderator", comC.Senders[0])
	require.Equal(t, "https://www.reddit.com/r/golang/comments/x/y/c/?context=3", comC.Link)
}

func TestRedditSource_FetchErrors(t *testing.T) {
	srv := redditServer(t)
	src := NewRedditSource(RedditOptions{
		Accounts: []RedditAccount{{Name: "bad", ClientID: "cid", ClientSecret: "wrong", RefreshToken: "rt"}},
		APIURL:   srv.URL,
		TokenURL: srv.URL + "/api/v1/access_token",
	}, nil)

	_, err := src.Fetch(context.Background(), "bad")
	require.Error(t, err)

	_, err = src.Fetch(context.Background(), "nobody")
	require.ErrorContains(t, err, "unknown account")
}
