package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"dddcore/internal/archive"
	"dddcore/internal/infra/persistence/memory"
	"dddcore/internal/infra/persistence/storetest"
	"dddcore/pkg/domain"
)

func seededStore(t *testing.T, ids ...string) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	for _, id := range ids {
		if err := store.Save(context.Background(), storetest.Snapshot(id, "Cart")); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	return store
}

func stubStore(t *testing.T, store domain.SnapshotStore, err error) {
	t.Helper()
	prev := openStore
	openStore = func(context.Context) (domain.SnapshotStore, error) {
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	t.Cleanup(func() { openStore = prev })
}

func stubArchive(t *testing.T, store archive.Store, err error) {
	t.Helper()
	prev := openArchive
	openArchive = func(context.Context) (archive.Store, error) {
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	t.Cleanup(func() { openArchive = prev })
}

func TestCLIListTable(t *testing.T) {
	stubStore(t, seededStore(t, "b", "a"), nil)
	var stdout, stderr bytes.Buffer
	if code := cli(nil, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", stdout.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.HasPrefix(lines[1], "a ") || !strings.HasPrefix(lines[2], "b ") {
		t.Fatalf("unexpected table %q", stdout.String())
	}
	if !strings.Contains(lines[1], "Cart") || !strings.Contains(lines[1], "3") {
		t.Fatalf("row missing name or entity count: %q", lines[1])
	}
}

func TestCLIListJSON(t *testing.T) {
	stubStore(t, seededStore(t, "cart-1"), nil)
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-json"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	var infos []domain.SnapshotInfo
	if err := json.Unmarshal(stdout.Bytes(), &infos); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != "cart-1" || infos[0].EntityCount != 3 {
		t.Fatalf("unexpected summaries %+v", infos)
	}
}

func TestCLIArchive(t *testing.T) {
	stubStore(t, seededStore(t, "cart-1"), nil)
	arch := archive.NewMemory()
	stubArchive(t, arch, nil)
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-archive", "cart-1"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "archived snapshot") {
		t.Fatalf("expected archive log, got %q", stderr.String())
	}
	infos, err := arch.List(context.Background(), "aggregates/cart-1/")
	if err != nil || len(infos) != 1 {
		t.Fatalf("expected one archived copy, got %v %v", infos, err)
	}
}

func TestCLIFailures(t *testing.T) {
	t.Run("bad flag", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		if code := cli([]string{"-nope"}, &stdout, &stderr); code != 2 {
			t.Fatalf("exit %d, want 2", code)
		}
	})
	t.Run("store open", func(t *testing.T) {
		stubStore(t, nil, errors.New("no database"))
		var stdout, stderr bytes.Buffer
		if code := cli(nil, &stdout, &stderr); code != 1 {
			t.Fatalf("exit %d, want 1", code)
		}
		if !strings.Contains(stderr.String(), "no database") {
			t.Fatalf("expected logged cause, got %q", stderr.String())
		}
	})
	t.Run("archive open", func(t *testing.T) {
		stubStore(t, seededStore(t), nil)
		stubArchive(t, nil, errors.New("no bucket"))
		var stdout, stderr bytes.Buffer
		if code := cli([]string{"-archive", "x"}, &stdout, &stderr); code != 1 {
			t.Fatalf("exit %d, want 1", code)
		}
	})
	t.Run("archive missing aggregate", func(t *testing.T) {
		stubStore(t, seededStore(t), nil)
		stubArchive(t, archive.NewMemory(), nil)
		var stdout, stderr bytes.Buffer
		if code := cli([]string{"-archive", "ghost"}, &stdout, &stderr); code != 1 {
			t.Fatalf("exit %d, want 1", code)
		}
		if !strings.Contains(stderr.String(), "repository operation failed") {
			t.Fatalf("expected service failure log, got %q", stderr.String())
		}
	})
}

func TestMainUsesExitFunc(t *testing.T) {
	stubStore(t, seededStore(t), nil)
	got := -1
	prev, prevArgs := exitFunc, os.Args
	exitFunc = func(code int) { got = code }
	os.Args = []string{"snapshot-check"}
	defer func() { exitFunc, os.Args = prev, prevArgs }()
	main()
	if got != 0 {
		t.Fatalf("exit code = %d, want 0", got)
	}
}
