package wsconn

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daqhub/metriq/bus"
	"github.com/daqhub/metriq/log"
)

func TestServeSignsOnAndRoutesPublishedMessages(t *testing.T) {
	h := bus.NewHub()
	b := &bus.Broadcaster{Hub: h}
	go h.Run(b)
	defer h.Close()

	srv := httptest.NewServer(Serve(h, log.NewTesting(t)))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	wc, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer wc.Close()

	// Give the hub a moment to process the sign-on before publishing.
	time.Sleep(50 * time.Millisecond)

	h.Publish(&bus.Msg{Subj: bus.SubjRunOK, Data: map[string]string{"ok": "1"}})

	wc.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := wc.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), bus.SubjRunOK)
}

func TestServeRoutesClientMessageBackThroughHub(t *testing.T) {
	h := bus.NewHub()
	b := &bus.Broadcaster{Hub: h}
	go h.Run(b)
	defer h.Close()

	srv := httptest.NewServer(Serve(h, log.NewTesting(t)))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	wcA, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer wcA.Close()

	wcB, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer wcB.Close()

	time.Sleep(50 * time.Millisecond)

	require.NoError(t, wcA.WriteJSON(map[string]string{"subj": "run.ok"}))

	wcB.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := wcB.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "run.ok")
}
