package handlers_test

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgruber/quizbowl-buzzer/internal/game"
	"github.com/kgruber/quizbowl-buzzer/internal/testutil"
)

func TestRoomHandler_Get(t *testing.T) {
	ts := testutil.NewTestServer(t)
	room := ts.Registry.Create(uuid.New(), "Dana", "Friday Night", 3)

	resp, err := http.Get(ts.URL("/api/v1/rooms/" + room.Code()))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap game.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, room.Code(), snap.Code)
	assert.Equal(t, "Friday Night", snap.RoomName)
	assert.Len(t, snap.Teams, 3)
}

func TestRoomHandler_GetLowercaseCode(t *testing.T) {
	ts := testutil.NewTestServer(t)
	room := ts.Registry.Create(uuid.New(), "Dana", "Friday Night", 2)

	// Codes are normalized so a hand-typed lowercase code still resolves.
	resp, err := http.Get(ts.URL("/api/v1/rooms/" + strings.ToLower(room.Code())))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomHandler_GetUnknownRoom(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp, err := http.Get(ts.URL("/api/v1/rooms/ZZZZZZ"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomHandler_QR(t *testing.T) {
	ts := testutil.NewTestServer(t)
	room := ts.Registry.Create(uuid.New(), "Dana", "Friday Night", 2)

	resp, err := http.Get(ts.URL("/api/v1/rooms/" + room.Code() + "/qr"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestRoomHandler_QRUnknownRoom(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp, err := http.Get(ts.URL("/api/v1/rooms/ZZZZZZ/qr"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp, err := http.Get(ts.URL("/health"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
