package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AdibBinKadir/ai-robot-pet/pkg/models"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "home"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newCommand(owner, utterance string, action int, kind string) *models.Command {
	return &models.Command{
		ID:        uuid.NewString(),
		Owner:     owner,
		Utterance: utterance,
		Action:    action,
		Reply:     "ok",
		Kind:      kind,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestInsertAndGet(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	cmd := newCommand("u1", "go forward", models.ActionForward, models.KindCommand)
	if err := st.Insert(ctx, cmd); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := st.Get(ctx, cmd.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Owner != "u1" || got.Action != models.ActionForward || got.Status != models.StatusPending {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.CompletedAt != nil || got.Error != nil {
		t.Fatalf("fresh row should have no terminal fields: %+v", got)
	}

	if err := st.Insert(ctx, cmd); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second insert of same id: got %v, want ErrDuplicate", err)
	}

	if _, err := st.Get(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing id: got %v, want ErrNotFound", err)
	}
}

func TestClaimPendingOrderAndLimit(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	var ids []string
	for i := 0; i < 5; i++ {
		cmd := newCommand("u1", fmt.Sprintf("cmd %d", i), models.ActionForward, models.KindCommand)
		cmd.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := st.Insert(ctx, cmd); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
		ids = append(ids, cmd.ID)
	}

	now := time.Now().UTC()
	claimed, err := st.ClaimPending(ctx, 3, now, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ClaimPending: %v", err)
	}
	if len(claimed) != 3 {
		t.Fatalf("claimed %d rows, want 3", len(claimed))
	}
	// Oldest-first when limit is smaller than the pending set.
	for i, c := range claimed {
		if c.ID != ids[i] {
			t.Fatalf("claim order: position %d got %s, want %s", i, c.ID, ids[i])
		}
		if c.Status != models.StatusProcessing {
			t.Fatalf("claimed row status = %s, want processing", c.Status)
		}
		if c.ClaimedAt == nil {
			t.Fatalf("claimed row missing claimed_at")
		}
	}

	// Remaining two come on the next claim.
	rest, err := st.ClaimPending(ctx, 10, now, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ClaimPending rest: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("second claim got %d rows, want 2", len(rest))
	}
}

func TestClaimPendingRespectsCutoff(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	cmd := newCommand("u1", "future", models.ActionForward, models.KindCommand)
	cmd.CreatedAt = time.Now().UTC().Add(time.Hour)
	if err := st.Insert(ctx, cmd); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	now := time.Now().UTC()
	claimed, err := st.ClaimPending(ctx, 10, now, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ClaimPending: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("claimed a row created after cutoff: %+v", claimed)
	}
}

func TestClaimPendingDisjointUnderRace(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if err := st.Insert(ctx, newCommand("u1", fmt.Sprintf("cmd %d", i), models.ActionForward, models.KindCommand)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	now := time.Now().UTC()
	stale := now.Add(-time.Hour)
	results := make([][]models.Command, 2)
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var mine []models.Command
			for len(mine) < 20 {
				got, err := st.ClaimPending(ctx, 5, now, stale)
				if err != nil {
					t.Errorf("ClaimPending: %v", err)
					return
				}
				if len(got) == 0 {
					break
				}
				mine = append(mine, got...)
			}
			results[w] = mine
		}(w)
	}
	wg.Wait()

	seen := make(map[string]int)
	total := 0
	for _, batch := range results {
		for _, c := range batch {
			seen[c.ID]++
			total++
		}
	}
	if total != 20 {
		t.Fatalf("claimed %d rows total, want 20", total)
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("command %s claimed %d times", id, n)
		}
	}
}

func TestStaleProcessingReclaim(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	cmd := newCommand("u1", "go forward", models.ActionForward, models.KindCommand)
	if err := st.Insert(ctx, cmd); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	now := time.Now().UTC()
	first, err := st.ClaimPending(ctx, 1, now, now.Add(-time.Hour))
	if err != nil || len(first) != 1 {
		t.Fatalf("first claim: %v (%d rows)", err, len(first))
	}

	// Fresh processing row: not eligible while its claim is recent.
	again, err := st.ClaimPending(ctx, 1, now, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("fresh processing row was re-claimed")
	}

	// Simulating a crashed poller: move staleBefore past the claim time.
	reclaimed, err := st.ClaimPending(ctx, 1, time.Now().UTC(), time.Now().UTC().Add(time.Second))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if len(reclaimed) != 1 || reclaimed[0].ID != cmd.ID {
		t.Fatalf("stale row not reclaimed: %+v", reclaimed)
	}
}

func TestFinishTransitions(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	cmd := newCommand("u1", "go forward", models.ActionForward, models.KindCommand)
	if err := st.Insert(ctx, cmd); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Finish before claim is a contract violation.
	if err := st.Finish(ctx, cmd.ID, models.Outcome{Status: models.StatusCompleted}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("finish of pending row: got %v, want ErrNotFound", err)
	}

	now := time.Now().UTC()
	if _, err := st.ClaimPending(ctx, 1, now, now.Add(-time.Hour)); err != nil {
		t.Fatalf("ClaimPending: %v", err)
	}

	if err := st.Finish(ctx, cmd.ID, models.Outcome{Status: models.StatusFailed, Error: "motor stall"}); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	got, err := st.Get(ctx, cmd.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.StatusFailed || got.Error == nil || *got.Error != "motor stall" {
		t.Fatalf("failed row: %+v", got)
	}
	if got.CompletedAt == nil {
		t.Fatalf("terminal row missing completed_at")
	}
	firstCompleted := *got.CompletedAt

	// Double-finish must not succeed or move completed_at.
	if err := st.Finish(ctx, cmd.ID, models.Outcome{Status: models.StatusCompleted}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double finish: got %v, want ErrNotFound", err)
	}
	got, _ = st.Get(ctx, cmd.ID)
	if !got.CompletedAt.Equal(firstCompleted) {
		t.Fatalf("completed_at changed on double finish")
	}

	if err := st.Finish(ctx, cmd.ID, models.Outcome{Status: "nonsense"}); err == nil {
		t.Fatal("expected error for invalid outcome status")
	}
}

func TestHistoryNewestFirstPerOwner(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		cmd := newCommand("u1", fmt.Sprintf("u1 cmd %d", i), models.ActionNone, models.KindConversation)
		cmd.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := st.Insert(ctx, cmd); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	other := newCommand("u2", "other owner", models.ActionNone, models.KindConversation)
	if err := st.Insert(ctx, other); err != nil {
		t.Fatalf("Insert other: %v", err)
	}

	hist, err := st.History(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("history length %d, want 3 (owner isolation)", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].CreatedAt.After(hist[i-1].CreatedAt) {
			t.Fatalf("history not newest-first: %v then %v", hist[i-1].CreatedAt, hist[i].CreatedAt)
		}
	}
	if hist[0].Utterance != "u1 cmd 2" {
		t.Fatalf("newest entry = %q", hist[0].Utterance)
	}

	limited, err := st.History(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("History limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited history length %d, want 2", len(limited))
	}
}

func TestCountByStatus(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := st.Insert(ctx, newCommand("u1", "x", models.ActionForward, models.KindCommand)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	now := time.Now().UTC()
	claimed, err := st.ClaimPending(ctx, 2, now, now.Add(-time.Hour))
	if err != nil || len(claimed) != 2 {
		t.Fatalf("ClaimPending: %v (%d)", err, len(claimed))
	}
	if err := st.Finish(ctx, claimed[0].ID, models.Outcome{Status: models.StatusCompleted}); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	counts, err := st.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	want := models.StatusCounts{Pending: 1, Processing: 1, Completed: 1}
	if counts != want {
		t.Fatalf("counts = %+v, want %+v", counts, want)
	}
}
