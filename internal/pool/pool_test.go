package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBody_ReturnsEmptyBuffer(t *testing.T) {
	buf := GetBody()
	buf.WriteString("leftover")
	PutBody(buf)

	again := GetBody()
	assert.Zero(t, again.Len())
	PutBody(again)
}

func TestPutBody_DropsOversizedBuffers(t *testing.T) {
	big := bytes.NewBuffer(make([]byte, 0, MaxBodyCap+1))
	big.WriteString("x")
	PutBody(big)
	// 버려진 버퍼는 Reset 되지 않는다
	assert.Equal(t, 1, big.Len())
}

func TestPutBuffer_ResetsReusableBuffers(t *testing.T) {
	buf := BufferPool.Get().(*bytes.Buffer)
	buf.WriteString("payload")
	PutBuffer(buf)
	assert.Zero(t, buf.Len())
}
