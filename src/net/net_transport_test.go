package net

import (
	"reflect"
	"testing"
	"time"

	"github.com/veridict/veridict/src/common"
	"github.com/veridict/veridict/src/gossip"
)

func TestNetworkTransport_StartStop(t *testing.T) {
	trans, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	trans.Close()
}

func TestNetworkTransport_Gossip(t *testing.T) {
	// Transport 1 is consumer
	trans1, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans1.Close()
	go trans1.Listen()
	rpcCh := trans1.Consumer()

	// Make the RPC request
	args := GossipRequest{
		FromID:   7,
		Envelope: gossip.NewEnvelope(gossip.BlockItem, []byte("judgment block bytes"), 4),
	}
	resp := GossipResponse{
		FromID:   9,
		Accepted: true,
	}

	// Listen for a request
	go func() {
		select {
		case rpc := <-rpcCh:
			// Verify the command
			req := rpc.Command.(*GossipRequest)
			if req.FromID != args.FromID {
				t.Errorf("FromID mismatch: %d %d", req.FromID, args.FromID)
			}
			if req.Envelope.Digest() != args.Envelope.Digest() {
				t.Errorf("envelope digest mismatch")
			}

			rpc.Respond(&resp, nil)

		case <-time.After(200 * time.Millisecond):
			t.Errorf("timeout")
		}
	}()

	// Transport 2 makes outbound request
	trans2, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans2.Close()

	var out GossipResponse
	if err := trans2.Gossip(trans1.LocalAddr(), &args, &out); err != nil {
		t.Fatalf("err: %v", err)
	}

	// Verify the response
	if !reflect.DeepEqual(resp, out) {
		t.Fatalf("response mismatch: %#v %#v", resp, out)
	}
}

func TestNetworkTransport_Pull(t *testing.T) {
	// Transport 1 is consumer
	trans1, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans1.Close()
	go trans1.Listen()
	rpcCh := trans1.Consumer()

	// Make the RPC request
	args := PullRequest{
		FromID: 7,
		Known: map[string]int{
			"alice": 1,
			"bob":   2,
		},
	}
	resp := PullResponse{
		FromID: 9,
		Known: map[string]int{
			"alice": 5,
			"bob":   5,
		},
	}

	// Listen for a request
	go func() {
		select {
		case rpc := <-rpcCh:
			// Verify the command
			req := rpc.Command.(*PullRequest)
			if !reflect.DeepEqual(req, &args) {
				t.Errorf("command mismatch: %#v %#v", *req, args)
			}

			rpc.Respond(&resp, nil)

		case <-time.After(200 * time.Millisecond):
			t.Errorf("timeout")
		}
	}()

	// Transport 2 makes outbound request
	trans2, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans2.Close()

	var out PullResponse
	if err := trans2.Pull(trans1.LocalAddr(), &args, &out); err != nil {
		t.Fatalf("err: %v", err)
	}

	if out.FromID != resp.FromID || !reflect.DeepEqual(out.Known, resp.Known) {
		t.Fatalf("response mismatch: %#v %#v", resp, out)
	}
}

func TestNetworkTransport_PooledConn(t *testing.T) {
	trans1, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans1.Close()
	go trans1.Listen()
	rpcCh := trans1.Consumer()

	go func() {
		for {
			select {
			case rpc := <-rpcCh:
				req := rpc.Command.(*PullRequest)
				rpc.Respond(&PullResponse{FromID: 1, Known: req.Known}, nil)
			case <-time.After(time.Second):
				return
			}
		}
	}()

	trans2, err := NewTCPTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans2.Close()

	// Sequential requests over the same pooled connection
	for i := 0; i < 5; i++ {
		args := PullRequest{FromID: 2, Known: map[string]int{"alice": i}}
		var out PullResponse
		if err := trans2.Pull(trans1.LocalAddr(), &args, &out); err != nil {
			t.Fatalf("err: %v", err)
		}
		if out.Known["alice"] != i {
			t.Fatalf("response mismatch on request %d", i)
		}
	}
}

func TestWSTransport_Gossip(t *testing.T) {
	trans1, err := NewWSTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans1.Close()
	go trans1.Listen()
	rpcCh := trans1.Consumer()

	resp := GossipResponse{FromID: 9, Accepted: true}

	go func() {
		select {
		case rpc := <-rpcCh:
			rpc.Respond(&resp, nil)
		case <-time.After(200 * time.Millisecond):
			t.Errorf("timeout")
		}
	}()

	trans2, err := NewWSTransport("127.0.0.1:0", "", 2, time.Second, common.NewTestEntry(t))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer trans2.Close()

	args := GossipRequest{
		FromID:   7,
		Envelope: gossip.NewEnvelope(gossip.VoteItem, []byte("vote bytes"), 4),
	}

	var out GossipResponse
	if err := trans2.Gossip(trans1.LocalAddr(), &args, &out); err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(resp, out) {
		t.Fatalf("response mismatch: %#v %#v", resp, out)
	}
}
