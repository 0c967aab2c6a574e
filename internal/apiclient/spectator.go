package apiclient

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

type SpectatorState string

const (
	StateDisconnected SpectatorState = "disconnected"
	StateConnecting   SpectatorState = "connecting"
	StateConnected    SpectatorState = "connected"
	StateReconnecting SpectatorState = "reconnecting"
	StateFailed       SpectatorState = "failed"
	// StateFinished means the server closed the stream because the game ended.
	StateFinished SpectatorState = "finished"
)

type UpdateCallback func(game *chessdto.LiveGame)

type StateCallback func(state SpectatorState)

type callbackEntry struct {
	id       int
	callback UpdateCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// Spectator follows one live game over the server's WebSocket stream. A dropped
// connection is redialled up to maxReconnectAttempts times.
type Spectator struct {
	wsURL string

	conn   *websocket.Conn
	connM  sync.Mutex
	state  SpectatorState
	stateM sync.RWMutex

	updateCbs []callbackEntry
	stateCbs  []stateCallbackEntry
	cbM       sync.RWMutex
	nextCbID  int

	maxReconnectAttempts int
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	headerProvider HeaderProvider
}

func NewSpectator(wsURL string, maxReconnectAttempts int) *Spectator {
	return &Spectator{
		wsURL:                wsURL,
		state:                StateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		doneCh:               make(chan struct{}),
	}
}

// SetHeaderProvider allows injecting headers into the handshake.
func (s *Spectator) SetHeaderProvider(h HeaderProvider) {
	s.headerProvider = h
}

// Done is closed once the spectator has stopped for good: the game finished,
// reconnecting gave up, or Close was called.
func (s *Spectator) Done() <-chan struct{} { return s.doneCh }

func (s *Spectator) State() SpectatorState {
	s.stateM.RLock()
	defer s.stateM.RUnlock()
	return s.state
}

func (s *Spectator) Connect(ctx context.Context) error {
	switch s.State() {
	case StateConnected, StateConnecting:
		return nil
	}

	s.rootCtx, s.rootCancel = context.WithCancel(context.Background())
	s.setState(StateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := s.dial(dialCtx)
	if err != nil {
		s.setState(StateFailed)
		s.scheduleReconnect()
		return err
	}
	s.attach(conn)
	return nil
}

func (s *Spectator) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, s.wsURL, &websocket.DialOptions{
		HTTPHeader: s.buildHeaders(),
	})
	return conn, err
}

func (s *Spectator) attach(conn *websocket.Conn) {
	s.connM.Lock()
	s.conn = conn
	s.connM.Unlock()
	s.setState(StateConnected)

	s.wg.Add(2)
	go s.listen(conn)
	go s.pingLoop(conn)
}

func (s *Spectator) listen(conn *websocket.Conn) {
	defer s.wg.Done()
	for {
		var g chessdto.LiveGame
		if err := wsjson.Read(s.rootCtx, conn, &g); err != nil {
			if s.isStopping() {
				return
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				s.setState(StateFinished)
				s.finish()
				return
			}
			s.setState(StateDisconnected)
			_ = s.closeConn(websocket.StatusGoingAway, "reconnect")
			s.scheduleReconnect()
			return
		}

		s.cbM.RLock()
		callbacks := make([]callbackEntry, len(s.updateCbs))
		copy(callbacks, s.updateCbs)
		s.cbM.RUnlock()
		for _, entry := range callbacks {
			if entry.callback != nil {
				entry.callback(&g)
			}
		}
	}
}

func (s *Spectator) pingLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.rootCtx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(s.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= 2 {
				// listen sees the closed connection and reconnects
				_ = conn.Close(websocket.StatusGoingAway, "ping failure")
				return
			}
		}
	}
}

func (s *Spectator) scheduleReconnect() {
	if s.maxReconnectAttempts <= 0 {
		s.finish()
		return
	}
	s.setState(StateReconnecting)

	go func() {
		for attempt := 1; attempt <= s.maxReconnectAttempts; attempt++ {
			select {
			case <-s.stopCh:
				return
			case <-time.After(backoffDuration(attempt)):
			}

			dialCtx, cancel := context.WithTimeout(s.rootCtx, 10*time.Second)
			conn, err := s.dial(dialCtx)
			cancel()
			if err != nil {
				continue
			}
			s.attach(conn)
			return
		}
		s.setState(StateFailed)
		s.finish()
	}()
}

func (s *Spectator) OnUpdate(cb UpdateCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	s.nextCbID++
	s.updateCbs = append(s.updateCbs, callbackEntry{id: s.nextCbID, callback: cb})
	return s.nextCbID
}

func (s *Spectator) RemoveUpdateCallback(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, cb := range s.updateCbs {
		if cb.id == id {
			s.updateCbs = append(s.updateCbs[:i], s.updateCbs[i+1:]...)
			break
		}
	}
}

func (s *Spectator) OnStateChange(cb StateCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	s.nextCbID++
	s.stateCbs = append(s.stateCbs, stateCallbackEntry{id: s.nextCbID, callback: cb})
	return s.nextCbID
}

func (s *Spectator) RemoveStateCallback(id int) {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	for i, cb := range s.stateCbs {
		if cb.id == id {
			s.stateCbs = append(s.stateCbs[:i], s.stateCbs[i+1:]...)
			break
		}
	}
}

func (s *Spectator) setState(state SpectatorState) {
	s.stateM.Lock()
	s.state = state
	s.stateM.Unlock()

	s.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(s.stateCbs))
	copy(callbacks, s.stateCbs)
	s.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (s *Spectator) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	_ = s.closeConn(websocket.StatusNormalClosure, "close")
	if s.rootCancel != nil {
		s.rootCancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		s.finish()
		return nil
	}
}

func (s *Spectator) finish() {
	s.doneOnce.Do(func() {
		if s.rootCancel != nil {
			s.rootCancel()
		}
		close(s.doneCh)
	})
}

func (s *Spectator) closeConn(code websocket.StatusCode, reason string) error {
	s.connM.Lock()
	conn := s.conn
	s.conn = nil
	s.connM.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(code, reason)
}

func (s *Spectator) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Spectator) buildHeaders() http.Header {
	hdr := http.Header{}
	if s.headerProvider == nil {
		return hdr
	}
	for k, v := range s.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
