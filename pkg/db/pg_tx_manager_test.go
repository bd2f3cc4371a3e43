package db

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

type fakeTx struct {
	commitErr error
	commits   int
	rollbacks int
}

func (f *fakeTx) Commit(ctx context.Context) error   { f.commits++; return f.commitErr }
func (f *fakeTx) Rollback(ctx context.Context) error { f.rollbacks++; return nil }

func TestFinishTxSurfacesCommitError(t *testing.T) {
	tx := &fakeTx{commitErr: errors.New("connection reset")}
	err := finishTx(context.Background(), tx, nil)
	if err == nil {
		t.Fatal("commit failure must be returned, not swallowed")
	}
	if !strings.Contains(err.Error(), "failed to commit tx") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFinishTxRollsBackOnFnError(t *testing.T) {
	tx := &fakeTx{}
	fnErr := errors.New("insert failed")
	if err := finishTx(context.Background(), tx, fnErr); err != fnErr {
		t.Fatalf("fn error must pass through, got %v", err)
	}
	if tx.rollbacks != 1 || tx.commits != 0 {
		t.Fatalf("expected rollback without commit, got commits=%d rollbacks=%d", tx.commits, tx.rollbacks)
	}
}

func TestFinishTxCommitSuccess(t *testing.T) {
	tx := &fakeTx{}
	if err := finishTx(context.Background(), tx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.commits != 1 || tx.rollbacks != 0 {
		t.Fatalf("expected a single commit, got commits=%d rollbacks=%d", tx.commits, tx.rollbacks)
	}
}
