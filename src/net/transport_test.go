package net

import (
	"reflect"
	"testing"
	"time"

	"github.com/veridict/veridict/src/gossip"
)

func TestInmemTransport_Gossip(t *testing.T) {
	addr1, trans1 := NewInmemTransport("")
	addr2, trans2 := NewInmemTransport("")

	trans1.Connect(addr2, trans2)
	trans2.Connect(addr1, trans1)

	args := GossipRequest{
		FromID:   1,
		Envelope: gossip.NewEnvelope(gossip.BatchItem, []byte("epoch root"), 4),
	}
	resp := GossipResponse{FromID: 2, Accepted: true}

	go func() {
		select {
		case rpc := <-trans2.Consumer():
			rpc.Respond(&resp, nil)
		case <-time.After(200 * time.Millisecond):
			t.Errorf("timeout")
		}
	}()

	var out GossipResponse
	if err := trans1.Gossip(addr2, &args, &out); err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(resp, out) {
		t.Fatalf("response mismatch: %#v %#v", resp, out)
	}
}

func TestInmemTransport_UnknownTarget(t *testing.T) {
	_, trans := NewInmemTransport("")

	var out PullResponse
	if err := trans.Pull("nowhere", &PullRequest{FromID: 1}, &out); err == nil {
		t.Fatal("expected an error for an unconnected target")
	}
}

func TestInmemTransport_Disconnect(t *testing.T) {
	addr1, trans1 := NewInmemTransport("")
	addr2, trans2 := NewInmemTransport("")
	_ = addr1

	trans1.Connect(addr2, trans2)
	trans1.Disconnect(addr2)

	var out GossipResponse
	args := GossipRequest{FromID: 1, Envelope: gossip.NewEnvelope(gossip.BlockItem, []byte("b"), 1)}
	if err := trans1.Gossip(addr2, &args, &out); err == nil {
		t.Fatal("expected an error after disconnect")
	}
}
