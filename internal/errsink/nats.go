// internal/errsink/nats.go
package errsink

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
)

// publisher 는 *nats.Conn 중 NATSForwarder 가 쓰는 부분.
type publisher interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NATSForwarder 는 Report 를 JSON 으로 subject 에 publish 한다.
// core NATS publish 는 fire-and-forget 이므로 ctx 는 취소 여부만 확인한다.
type NATSForwarder struct {
	conn    publisher
	subject string
}

// DialNATS 는 url 에 연결한다. 끊기면 nats.go 가 알아서 재연결한다.
func DialNATS(url, subject, name string) (*NATSForwarder, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("errsink: nats connect %s: %w", url, err)
	}
	return &NATSForwarder{conn: nc, subject: subject}, nil
}

func (f *NATSForwarder) Forward(ctx context.Context, r Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return f.conn.Publish(f.subject, data)
}

// Close 는 대기 중인 메시지를 flush 한 뒤 연결을 닫는다.
func (f *NATSForwarder) Close() error {
	return f.conn.Drain()
}
