package store

import (
	"fmt"
	"testing"
	"time"
)

func TestSweep(t *testing.T) {
	t.Run("EntryCap", func(t *testing.T) {
		s := newTestStore(t, Policy{MaxEntries: 3, MaxAge: 0})
		now := time.Now()

		for i := 0; i < 5; i++ {
			ts := now.Add(time.Duration(i) * time.Minute).UnixMilli()
			if _, err := s.Upsert(snap(fmt.Sprintf("https://example.com/%d", i), ts, 1)); err != nil {
				t.Fatalf("Upsert failed: %v", err)
			}
		}
		s.sweepWG.Wait()

		if err := s.Sweep(now); err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}

		all, err := s.GetAll()
		if err != nil {
			t.Fatalf("GetAll failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("Expected 3 memories after sweep, got %d", len(all))
		}
		// The three most recently visited survive.
		for i, want := range []string{"https://example.com/4", "https://example.com/3", "https://example.com/2"} {
			if all[i].URL != want {
				t.Errorf("Position %d: expected %s, got %s", i, want, all[i].URL)
			}
		}
	})

	t.Run("AgeCutoff", func(t *testing.T) {
		s := newTestStore(t, Policy{MaxEntries: 0, MaxAge: 30 * 24 * time.Hour})
		now := time.Now()

		stale := now.Add(-40 * 24 * time.Hour).UnixMilli()
		fresh := now.Add(-5 * 24 * time.Hour).UnixMilli()
		if _, err := s.Upsert(snap("https://example.com/stale", stale, 1)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		if _, err := s.Upsert(snap("https://example.com/fresh", fresh, 1)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		s.sweepWG.Wait()

		if err := s.Sweep(now); err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}

		all, _ := s.GetAll()
		if len(all) != 1 {
			t.Fatalf("Expected 1 memory after sweep, got %d", len(all))
		}
		if all[0].URL != "https://example.com/fresh" {
			t.Errorf("Expected the fresh memory to survive, got %s", all[0].URL)
		}
	})

	t.Run("RevisitRescuesStaleEntry", func(t *testing.T) {
		s := newTestStore(t, Policy{MaxEntries: 0, MaxAge: 30 * 24 * time.Hour})
		now := time.Now()

		old := now.Add(-40 * 24 * time.Hour).UnixMilli()
		if _, err := s.Upsert(snap("https://example.com/a", old, 1)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		// A revisit bumps last_visit, which resets the retention clock.
		if _, err := s.Upsert(snap("https://example.com/a", now.UnixMilli(), 1)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		s.sweepWG.Wait()

		if err := s.Sweep(now); err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}

		n, _ := s.Count()
		if n != 1 {
			t.Errorf("Expected revisited memory to survive, got %d memories", n)
		}
	})

	t.Run("DisabledPolicyKeepsEverything", func(t *testing.T) {
		s := newTestStore(t, Policy{MaxEntries: 0, MaxAge: 0})
		stale := time.Now().Add(-365 * 24 * time.Hour).UnixMilli()

		if _, err := s.Upsert(snap("https://example.com/ancient", stale, 1)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		s.sweepWG.Wait()

		if err := s.Sweep(time.Now()); err != nil {
			t.Fatalf("Sweep failed: %v", err)
		}
		n, _ := s.Count()
		if n != 1 {
			t.Errorf("Expected disabled policy to keep everything, got %d memories", n)
		}
	})
}
