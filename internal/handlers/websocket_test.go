package handlers_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"numbers-game-backend/internal/models"
)

func startServer(t *testing.T, g *testGame) string {
	t.Helper()
	srv := httptest.NewServer(g.router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/game"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) models.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg models.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func TestWebSocketGreetingWithoutRound(t *testing.T) {
	g := newTestGame(t, 1, nil)
	conn := dial(t, startServer(t, g))

	// no snapshot to send; the first thing back is the reply to our ping
	send(t, conn, `{"type":"PING"}`)
	msg := readMessage(t, conn)
	assert.Equal(t, models.MessagePong, msg.Type)
	assert.NotZero(t, msg.Timestamp)
}

func TestWebSocketGreetingSnapshot(t *testing.T) {
	g := newTestGame(t, 6, nil)
	round := g.engine.StartNewRound()
	url := startServer(t, g)

	open := dial(t, url)
	msg := readMessage(t, open)
	assert.Equal(t, models.MessageRoundOpened, msg.Type)
	assert.Equal(t, round.ID, msg.RoundID)
	assert.Equal(t, round.ClosesAt.UnixMilli(), msg.ClosesAtMs)

	g.settle(t)

	settled := dial(t, url)
	assert.Equal(t, models.MessageRoundOpened, readMessage(t, settled).Type)
	msg = readMessage(t, settled)
	assert.Equal(t, models.MessageRoundSettled, msg.Type)
	assert.Equal(t, 6, msg.WinningNumber)
}

func TestWebSocketBetReplies(t *testing.T) {
	g := newTestGame(t, 1, nil)
	g.engine.StartNewRound()
	conn := dial(t, startServer(t, g))
	require.Equal(t, models.MessageRoundOpened, readMessage(t, conn).Type)

	tests := []struct {
		name    string
		payload string
		want    models.MessageType
		code    models.ErrorCode
	}{
		{"accepted", `{"type":"BET","nickname":"John","number":3,"amount":"10"}`, models.MessageBetAccepted, ""},
		{"duplicate", `{"type":"bet","nickname":"John","number":4,"amount":"1"}`, models.MessageError, models.ErrorCodeDuplicate},
		{"number out of range", `{"type":"BET","nickname":"Neo","number":0,"amount":"1"}`, models.MessageError, models.ErrorCodeValidation},
		{"missing amount", `{"type":"BET","nickname":"Neo","number":2}`, models.MessageError, models.ErrorCodeValidation},
		{"blank nickname", `{"type":"BET","nickname":"  ","number":2,"amount":"1"}`, models.MessageError, models.ErrorCodeValidation},
		{"malformed", `{"type":`, models.MessageError, models.ErrorCodeBadInput},
		{"ping", `{"type":"ping"}`, models.MessagePong, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			send(t, conn, tt.payload)
			msg := readMessage(t, conn)
			assert.Equal(t, tt.want, msg.Type)
			assert.Equal(t, tt.code, msg.Code)
		})
	}
}

func TestWebSocketBetAfterClose(t *testing.T) {
	g := newTestGame(t, 1, nil)
	g.engine.StartNewRound()
	conn := dial(t, startServer(t, g))
	require.Equal(t, models.MessageRoundOpened, readMessage(t, conn).Type)

	g.settle(t)
	assert.Equal(t, models.MessageWinners, readMessage(t, conn).Type)
	assert.Equal(t, models.MessageRoundSettled, readMessage(t, conn).Type)

	send(t, conn, `{"type":"BET","nickname":"John","number":1,"amount":"1"}`)
	msg := readMessage(t, conn)
	assert.Equal(t, models.MessageError, msg.Type)
	assert.Equal(t, models.ErrorCodeRoundClosed, msg.Code)
}

func TestWebSocketSettlementDelivery(t *testing.T) {
	g := newTestGame(t, 7, nil)
	round := g.engine.StartNewRound()
	url := startServer(t, g)

	john := dial(t, url)
	smith := dial(t, url)
	watcher := dial(t, url)
	for _, conn := range []*websocket.Conn{john, smith, watcher} {
		require.Equal(t, models.MessageRoundOpened, readMessage(t, conn).Type)
	}

	send(t, john, `{"type":"BET","nickname":"John","number":7,"amount":"10.00"}`)
	require.Equal(t, models.MessageBetAccepted, readMessage(t, john).Type)
	send(t, smith, `{"type":"BET","nickname":"Smith","number":2,"amount":"3"}`)
	require.Equal(t, models.MessageBetAccepted, readMessage(t, smith).Type)

	assert.Equal(t, 3, g.hub.ClientCount())
	assert.Equal(t, 1, g.hub.BoundClients("John"))
	assert.Equal(t, 1, g.hub.BoundClients("Smith"))

	g.settle(t)

	msg := readMessage(t, john)
	assert.Equal(t, models.MessageYourResult, msg.Type)
	assert.Equal(t, round.ID, msg.RoundID)
	assert.Equal(t, models.ResultWin, msg.Result)
	assert.Equal(t, "99.00", msg.Payout)

	msg = readMessage(t, smith)
	assert.Equal(t, models.MessageYourResult, msg.Type)
	assert.Equal(t, models.ResultLose, msg.Result)
	assert.Equal(t, "0.00", msg.Payout)

	for _, conn := range []*websocket.Conn{john, smith, watcher} {
		msg = readMessage(t, conn)
		assert.Equal(t, models.MessageWinners, msg.Type)
		assert.Equal(t, []models.WinnerResponse{{Nickname: "John", Winnings: "99.00"}}, msg.Winners)

		msg = readMessage(t, conn)
		assert.Equal(t, models.MessageRoundSettled, msg.Type)
		assert.Equal(t, 7, msg.WinningNumber)
	}
}

func TestWebSocketRoundOpenedBroadcast(t *testing.T) {
	g := newTestGame(t, 1, nil)
	url := startServer(t, g)

	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return g.hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	round := g.engine.StartNewRound()
	for _, conn := range []*websocket.Conn{a, b} {
		msg := readMessage(t, conn)
		assert.Equal(t, models.MessageRoundOpened, msg.Type)
		assert.Equal(t, round.ID, msg.RoundID)
	}
}

func TestHubKeepsEveryBindingUntilDisconnect(t *testing.T) {
	g := newTestGame(t, 1, nil)
	g.engine.StartNewRound()
	url := startServer(t, g)

	conn := dial(t, url)
	require.Equal(t, models.MessageRoundOpened, readMessage(t, conn).Type)

	send(t, conn, `{"type":"BET","nickname":"John","number":1,"amount":"1"}`)
	require.Equal(t, models.MessageBetAccepted, readMessage(t, conn).Type)
	assert.Equal(t, 1, g.hub.BoundClients("John"))

	// same socket, another nickname
	send(t, conn, `{"type":"BET","nickname":"Neo","number":1,"amount":"1"}`)
	require.Equal(t, models.MessageBetAccepted, readMessage(t, conn).Type)
	assert.Equal(t, 1, g.hub.BoundClients("John"))
	assert.Equal(t, 1, g.hub.BoundClients("Neo"))

	// rejected bets do not bind
	other := dial(t, url)
	require.Equal(t, models.MessageRoundOpened, readMessage(t, other).Type)
	send(t, other, `{"type":"BET","nickname":"John","number":1,"amount":"1"}`)
	require.Equal(t, models.ErrorCodeDuplicate, readMessage(t, other).Code)
	assert.Equal(t, 1, g.hub.BoundClients("John"))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return g.hub.ClientCount() == 1 &&
			g.hub.BoundClients("John") == 0 &&
			g.hub.BoundClients("Neo") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketResultsForEveryNicknameOnConnection(t *testing.T) {
	g := newTestGame(t, 1, nil)
	round := g.engine.StartNewRound()
	conn := dial(t, startServer(t, g))
	require.Equal(t, models.MessageRoundOpened, readMessage(t, conn).Type)

	send(t, conn, `{"type":"BET","nickname":"John","number":1,"amount":"10"}`)
	require.Equal(t, models.MessageBetAccepted, readMessage(t, conn).Type)
	send(t, conn, `{"type":"BET","nickname":"Neo","number":2,"amount":"1"}`)
	require.Equal(t, models.MessageBetAccepted, readMessage(t, conn).Type)

	g.settle(t)

	// results follow acceptance order
	msg := readMessage(t, conn)
	assert.Equal(t, models.MessageYourResult, msg.Type)
	assert.Equal(t, round.ID, msg.RoundID)
	assert.Equal(t, models.ResultWin, msg.Result)
	assert.Equal(t, "99.00", msg.Payout)

	msg = readMessage(t, conn)
	assert.Equal(t, models.MessageYourResult, msg.Type)
	assert.Equal(t, models.ResultLose, msg.Result)
	assert.Equal(t, "0.00", msg.Payout)

	assert.Equal(t, models.MessageWinners, readMessage(t, conn).Type)
	assert.Equal(t, models.MessageRoundSettled, readMessage(t, conn).Type)
}

func TestWebSocketGreetingNeverFollowsNewerBroadcast(t *testing.T) {
	g := newTestGame(t, 1, nil)
	g.engine.StartNewRound()
	url := startServer(t, g)

	const rounds = 50
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		for i := 0; i < rounds; i++ {
			g.engine.StartNewRound()
		}
	}()

	<-started
	conns := make([]*websocket.Conn, 5)
	for i := range conns {
		conns[i] = dial(t, url)
	}
	<-done

	last := int64(rounds + 1)
	for _, conn := range conns {
		var prev int64
		for prev < last {
			msg := readMessage(t, conn)
			require.Equal(t, models.MessageRoundOpened, msg.Type)
			require.GreaterOrEqual(t, msg.RoundID, prev, "round ids went backwards")
			prev = msg.RoundID
		}
	}
}

func TestWebSocketOversizedMessageClosesConnection(t *testing.T) {
	g := newTestGame(t, 1, nil)
	conn := dial(t, startServer(t, g))
	require.Eventually(t, func() bool { return g.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	send(t, conn, `{"type":"PING","pad":"`+strings.Repeat("x", 5000)+`"}`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
	require.Eventually(t, func() bool { return g.hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestResultWithoutConnectedBettor(t *testing.T) {
	g := newTestGame(t, 5, nil)
	g.engine.StartNewRound()
	conn := dial(t, startServer(t, g))
	require.Equal(t, models.MessageRoundOpened, readMessage(t, conn).Type)

	// bet placed over REST, so no socket is bound to Trinity
	w := g.do("POST", "/api/bets", `{"nickname":"Trinity","number":5,"amount":"2"}`)
	require.Equal(t, 202, w.Code)

	g.settle(t)

	msg := readMessage(t, conn)
	assert.Equal(t, models.MessageWinners, msg.Type)
	assert.Equal(t, []models.WinnerResponse{{Nickname: "Trinity", Winnings: "19.80"}}, msg.Winners)
	assert.Equal(t, models.MessageRoundSettled, readMessage(t, conn).Type)
}
