package client

import (
	"context"
	"errors"
	"net"

	"github.com/aeolun/neighborchat/pkg/protocol"
	"go.uber.org/zap"
)

// readLoop receives packets from conn and hands them to the dispatcher in
// wire order until the connection ends. It returns nil when the server
// closed the stream and the terminating error otherwise.
func readLoop(conn PacketConn, dispatcher *Dispatcher, logger *zap.Logger) error {
	for {
		p, err := conn.Recv()
		if err != nil {
			switch {
			case errors.Is(err, ErrConnectionAborted):
				logger.Info("server closed the connection")
				return nil
			case protocol.IsDecodeError(err):
				// One bad line does not cost the connection
				logger.Warn("skipping undecodable packet", zap.Error(err))
				continue
			case errors.Is(err, net.ErrClosed):
				logger.Debug("read loop stopped, connection closed")
				return err
			default:
				logger.Error("read failed", zap.Error(err))
				return err
			}
		}

		dispatcher.Dispatch(p)
	}
}

// writeLoop is the single consumer of the outbox. It sends packets in
// enqueue order and stops when ctx is cancelled, the outbox closes or a
// send fails.
func writeLoop(ctx context.Context, conn PacketConn, outbox *Outbox, logger *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-outbox.done:
			return nil
		case p := <-outbox.ch:
			outbox.metrics.RecordOutboxDepth(len(outbox.ch))

			if _, err := conn.Send(p); err != nil {
				if errors.Is(err, ErrEncode) {
					logger.Error("dropping packet that cannot be encoded",
						zap.Stringer("type", p.Type()), zap.Error(err))
					continue
				}
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("write failed", zap.Error(err))
				return err
			}
		}
	}
}
