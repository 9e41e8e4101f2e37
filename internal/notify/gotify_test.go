package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmagar/gigs-cli/internal/logger"
	"github.com/jmagar/gigs-cli/internal/model"
)

func TestNew_DisabledWithoutCredentials(t *testing.T) {
	assert.Nil(t, New("", "tok", 5, nil))
	assert.Nil(t, New("http://gotify", "", 5, nil))

	var n *Notifier
	assert.NoError(t, n.ReminderChanged(context.Background(), model.Concert{ID: "1"}, true))
}

func TestReminderChanged_PostsMessage(t *testing.T) {
	var got map[string]any
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message", r.URL.Path)
		token = r.Header.Get("X-Gotify-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL+"/", "app-token", 7, logger.Discard())
	err := n.ReminderChanged(context.Background(), model.Concert{ID: "9", Artist: "Mayday", Time: "2026/12/31 20:00", Location: "Taipei Dome"}, true)
	require.NoError(t, err)

	assert.Equal(t, "app-token", token)
	assert.Equal(t, "Reminder set", got["title"])
	assert.Equal(t, "Mayday - 2026/12/31 20:00 @ Taipei Dome", got["message"])
	assert.EqualValues(t, 7, got["priority"])
}

func TestReminderChanged_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := New(srv.URL, "bad", 5, logger.Discard())
	err := n.ReminderChanged(context.Background(), model.Concert{ID: "9", Artist: "Mayday"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
