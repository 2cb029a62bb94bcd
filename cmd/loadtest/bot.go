package main

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/aeolun/neighborchat/pkg/client"
	"github.com/aeolun/neighborchat/pkg/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const loremIpsum = "Lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor incididunt ut labore et dolore magna aliqua Ut enim ad minim veniam quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur Excepteur sint occaecat cupidatat non proident sunt in culpa qui officia deserunt mollit anim id est laborum"

var loremWords = strings.Fields(loremIpsum)

// echoTimeout is how long a posted message may take to come back
const echoTimeout = 10 * time.Second

// generateNickname glues fragments of two random words into a valid nickname
func generateNickname(rng *rand.Rand) string {
	fragment := func() string {
		word := strings.ToLower(loremWords[rng.Intn(len(loremWords))])
		n := min(len(word), 3+rng.Intn(4))
		return word[:n]
	}

	name := fragment() + fragment()
	for len(name) < 3 {
		name += fragment()
	}
	name = strings.ToUpper(name[:1]) + name[1:]
	if len(name) > 20 {
		name = name[:20]
	}
	return name
}

func randomMessage(rng *rand.Rand) string {
	n := 3 + rng.Intn(15)
	words := make([]string, n)
	for i := range words {
		words[i] = loremWords[rng.Intn(len(loremWords))]
	}
	return strings.Join(words, " ")
}

// BotClient is a scripted chat client built on the reconnecting supervisor
type BotClient struct {
	id       int
	channel  string
	stats    *Stats
	logger   *zap.Logger
	rng      *rand.Rand
	builder  *protocol.PacketBuilder
	state    *client.ChatState
	super    *client.Supervisor
	minDelay time.Duration
	maxDelay time.Duration

	mu      sync.Mutex
	pending map[uuid.UUID]time.Time // posted, not yet echoed
}

// NewBotClient creates a bot that will chat in channel on addr
func NewBotClient(id int, addr, channel string, stats *Stats, minDelay, maxDelay time.Duration, logger *zap.Logger) *BotClient {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	state := client.NewChatState()
	dispatcher := client.NewDispatcher(state, nil)

	bc := &BotClient{
		id:       id,
		channel:  channel,
		stats:    stats,
		logger:   logger.With(zap.Int("bot", id)),
		rng:      rng,
		builder:  protocol.NewPacketBuilder(generateNickname(rng)),
		state:    state,
		minDelay: minDelay,
		maxDelay: maxDelay,
		pending:  make(map[uuid.UUID]time.Time),
	}
	bc.super = client.NewSupervisor(addr, state, dispatcher,
		client.WithRetryDelay(time.Second),
		client.WithSupervisorLogger(bc.logger),
		client.WithOnConnect(func(string) {
			stats.recordConnect()
		}),
	)
	return bc
}

// Run chats until ctx is cancelled
func (bc *BotClient) Run(ctx context.Context) {
	events, unsubscribe := bc.state.Subscribe(256)
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = bc.super.Run(ctx)
	}()
	defer wg.Wait()

	post := time.NewTimer(bc.nextDelay())
	defer post.Stop()
	sweep := time.NewTicker(time.Second)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			bc.handleEvent(ctx, ev)

		case <-post.C:
			if bc.state.IsOnline() && bc.state.ActiveChannel() == bc.channel {
				bc.postRandomMessage(ctx)
			}
			post.Reset(bc.nextDelay())

		case now := <-sweep.C:
			bc.expire(now)
		}
	}
}

func (bc *BotClient) handleEvent(ctx context.Context, ev client.Event) {
	switch ev.Kind {
	case client.EventConnectionState:
		switch ev.State {
		case client.StateConnected:
			bc.send(ctx, bc.builder.JoinChannel(bc.channel))
		case client.StateDisconnected:
			bc.stats.recordDisconnect()
		}
	case client.EventMessage:
		if ev.Message == nil || ev.Message.User != bc.builder.Nickname() {
			return
		}
		bc.mu.Lock()
		sent, ok := bc.pending[ev.Message.ID]
		delete(bc.pending, ev.Message.ID)
		bc.mu.Unlock()
		if ok {
			bc.stats.recordEcho(time.Since(sent))
		}
	case client.EventServerError:
		bc.stats.recordServerError()
		bc.logger.Debug("server error", zap.String("error", ev.Text))
	}
}

func (bc *BotClient) postRandomMessage(ctx context.Context) {
	msg := bc.builder.Chat(randomMessage(bc.rng))

	bc.mu.Lock()
	bc.pending[msg.ID] = time.Now()
	bc.mu.Unlock()

	if bc.send(ctx, msg) {
		bc.stats.recordPosted()
		return
	}
	bc.mu.Lock()
	delete(bc.pending, msg.ID)
	bc.mu.Unlock()
}

func (bc *BotClient) send(ctx context.Context, p protocol.Packet) bool {
	sendCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := bc.super.Send(sendCtx, p); err != nil {
		bc.stats.recordSendFailure()
		bc.logger.Debug("send failed", zap.Error(err))
		return false
	}
	return true
}

// expire drops messages that never came back
func (bc *BotClient) expire(now time.Time) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	expired := 0
	for id, sent := range bc.pending {
		if now.Sub(sent) > echoTimeout {
			delete(bc.pending, id)
			expired++
		}
	}
	if expired > 0 {
		bc.stats.recordTimeouts(expired)
	}
}

func (bc *BotClient) nextDelay() time.Duration {
	if bc.maxDelay <= bc.minDelay {
		return bc.minDelay
	}
	return bc.minDelay + time.Duration(bc.rng.Int63n(int64(bc.maxDelay-bc.minDelay)))
}
