package transport

import (
	"net"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/verte-zerg/oscreplay/internal/model"
)

func TestNewMessageTags(t *testing.T) {
	msg := NewMessage("/x", []model.Value{model.FloatValue(0.5), model.BoolValue(true), model.BoolValue(false)})
	tags, err := msg.TypeTags()
	if err != nil {
		t.Fatalf("type tags: %v", err)
	}
	if tags != ",fTF" {
		t.Fatalf("expected tags ,fTF, got %q", tags)
	}
}

func TestOSCClientSendsOverUDP(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	port := conn.LocalAddr().(*net.UDPAddr).Port

	client := NewOSCClient("127.0.0.1", port)
	if err := client.Send("/avatar/parameters/Speed", []model.Value{model.FloatValue(0.25)}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	buf := make([]byte, 1024)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	packet, err := osc.ParsePacket(string(buf[:n]))
	if err != nil {
		t.Fatalf("parse packet: %v", err)
	}
	msg, ok := packet.(*osc.Message)
	if !ok {
		t.Fatalf("expected message, got %T", packet)
	}
	if msg.Address != "/avatar/parameters/Speed" {
		t.Fatalf("unexpected address %q", msg.Address)
	}
	if len(msg.Arguments) != 1 {
		t.Fatalf("expected 1 argument, got %d", len(msg.Arguments))
	}
	if got, ok := msg.Arguments[0].(float32); !ok || got != 0.25 {
		t.Fatalf("expected float32 0.25, got %#v", msg.Arguments[0])
	}
}

func TestDefaultClientEndpoint(t *testing.T) {
	if got := NewDefaultClient().Endpoint(); got != "127.0.0.1:9000" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}
