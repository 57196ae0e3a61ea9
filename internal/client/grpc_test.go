package client

import "testing"

func TestNewGRPCClient_Close(t *testing.T) {
	c, err := NewGRPCClient("localhost:0", "tok")
	if err != nil {
		t.Fatalf("NewGRPCClient: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewGRPCClientFromConn_CloseLeavesConn(t *testing.T) {
	c := NewGRPCClientFromConn(nil, "")
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
