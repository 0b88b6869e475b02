package presence

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisRegistry(t *testing.T) *RedisRegistry {
	t.Helper()
	s := miniredis.RunT(t)
	r, err := NewRedisRegistry("redis://"+s.Addr(), "")
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedisRegistry_AssociateDisassociate(t *testing.T) {
	r := newTestRedisRegistry(t)

	if !r.Associate("c1", "userA") {
		t.Error("Expected first association to report went-online")
	}
	if !r.IsOnline("userA") {
		t.Error("Expected userA to be online")
	}

	userID, wentOffline := r.Disassociate("c1")
	if userID != "userA" || !wentOffline {
		t.Errorf("Expected ('userA', true), got (%q, %v)", userID, wentOffline)
	}
	if r.IsOnline("userA") {
		t.Error("Expected userA to be offline")
	}
}

func TestRedisRegistry_MultiDevice(t *testing.T) {
	r := newTestRedisRegistry(t)

	if !r.Associate("c1", "userA") {
		t.Error("Expected went-online on first device")
	}
	if r.Associate("c2", "userA") {
		t.Error("Second device must not report went-online again")
	}
	if r.Count("userA") != 2 {
		t.Errorf("Expected 2 connections, got %d", r.Count("userA"))
	}

	if _, wentOffline := r.Disassociate("c1"); wentOffline {
		t.Error("userA still has a device, must not report went-offline")
	}
	if !r.IsOnline("userA") {
		t.Error("Expected userA to stay online with one device left")
	}
	if _, wentOffline := r.Disassociate("c2"); !wentOffline {
		t.Error("Expected went-offline when last device disconnects")
	}
}

func TestRedisRegistry_DuplicateAndUnknown(t *testing.T) {
	r := newTestRedisRegistry(t)

	r.Associate("c1", "userA")
	if r.Associate("c1", "userA") {
		t.Error("Duplicate associate must not report a transition")
	}
	if r.Count("userA") != 1 {
		t.Errorf("Duplicate associate must not double-count, got %d", r.Count("userA"))
	}

	r.Disassociate("c1")
	if userID, wentOffline := r.Disassociate("c1"); userID != "" || wentOffline {
		t.Errorf("Duplicate disassociate must be a no-op, got (%q, %v)", userID, wentOffline)
	}
	if userID, wentOffline := r.Disassociate("never-seen"); userID != "" || wentOffline {
		t.Errorf("Unknown connection id must be a no-op, got (%q, %v)", userID, wentOffline)
	}
}

func TestRedisRegistry_ConcurrentAssociatesOneTransition(t *testing.T) {
	// two first connections racing must produce exactly one went-online
	// and leave the user visible; deciding from a set-size read instead
	// of the online index lets both racers miss the transition
	r := newTestRedisRegistry(t)

	const devices = 8
	var wentOnline int64
	var wg sync.WaitGroup
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(connID string) {
			defer wg.Done()
			if r.Associate(connID, "userA") {
				atomic.AddInt64(&wentOnline, 1)
			}
		}(fmt.Sprintf("conn%d", i))
	}
	wg.Wait()

	if wentOnline != 1 {
		t.Errorf("Expected exactly 1 went-online transition, got %d", wentOnline)
	}
	if !r.IsOnline("userA") {
		t.Error("Expected userA online after concurrent associates")
	}
	if r.Count("userA") != devices {
		t.Errorf("Expected %d connections, got %d", devices, r.Count("userA"))
	}
}

func TestRedisRegistry_ConcurrentDisassociatesOneTransition(t *testing.T) {
	r := newTestRedisRegistry(t)

	const devices = 8
	for i := 0; i < devices; i++ {
		r.Associate(fmt.Sprintf("conn%d", i), "userA")
	}

	var wentOffline int64
	var wg sync.WaitGroup
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(connID string) {
			defer wg.Done()
			if _, off := r.Disassociate(connID); off {
				atomic.AddInt64(&wentOffline, 1)
			}
		}(fmt.Sprintf("conn%d", i))
	}
	wg.Wait()

	if wentOffline != 1 {
		t.Errorf("Expected exactly 1 went-offline transition, got %d", wentOffline)
	}
	if r.IsOnline("userA") {
		t.Error("Expected userA offline after all devices disconnected")
	}
	if len(r.OnlineUserIDs()) != 0 {
		t.Errorf("Online index leaked entries: %v", r.OnlineUserIDs())
	}
}
