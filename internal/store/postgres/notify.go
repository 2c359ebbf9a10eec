package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const changeChannel = "record_changes"

const reconnectDelay = 2 * time.Second

// Subscribe listens on the record_changes channel fed by the table triggers
// in schema.sql. A dedicated connection is held until ctx ends; if it drops,
// the listener reconnects and emits one signal so the consumer can catch up.
func (s *Store) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	conn, err := s.listenConn(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan struct{}, 1)
	go s.listen(ctx, conn, out)
	return out, nil
}

func (s *Store) listenConn(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, s.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("listen connect: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen: %w", err)
	}
	return conn, nil
}

func (s *Store) listen(ctx context.Context, conn *pgx.Conn, out chan<- struct{}) {
	defer close(out)
	defer func() {
		if conn != nil {
			_ = conn.Close(context.Background())
		}
	}()

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error().Err(err).Msg("change listener lost its connection; reconnecting")
			_ = conn.Close(context.Background())
			conn = nil
			for conn == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(reconnectDelay):
				}
				if conn, err = s.listenConn(ctx); err != nil {
					s.log.Warn().Err(err).Msg("change listener reconnect failed")
					conn = nil
				}
			}
			signal(out)
			continue
		}

		s.log.Debug().Str("table", notification.Payload).Msg("record change")
		signal(out)
	}
}

func signal(out chan<- struct{}) {
	select {
	case out <- struct{}{}:
	default:
	}
}
