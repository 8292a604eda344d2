package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const (
	lockMinBackoff = 50 * time.Millisecond
	lockMaxBackoff = 1 * time.Second
	lockTimeout    = 10 * time.Second
)

// acquireFlock opens (creating if needed) and locks path exclusively,
// blocking with exponential backoff up to lockTimeout. The caller must
// release via releaseFlock.
func acquireFlock(ctx context.Context, path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, durability("create lock dir", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0640)
	if err != nil {
		return nil, durability("open lock file", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
		return f, nil
	} else if !errors.Is(err, syscall.EWOULDBLOCK) {
		f.Close()
		return nil, durability("flock", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	backoff := lockMinBackoff
	for {
		select {
		case <-lockCtx.Done():
			f.Close()
			return nil, newError(KindConcurrency, fmt.Sprintf("lock %s", path), lockCtx.Err())
		case <-time.After(backoff):
			err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
			if err == nil {
				return f, nil
			}
			if !errors.Is(err, syscall.EWOULDBLOCK) {
				f.Close()
				return nil, durability("flock", err)
			}
			backoff *= 2
			if backoff > lockMaxBackoff {
				backoff = lockMaxBackoff
			}
		}
	}
}

func releaseFlock(f *os.File) {
	if f == nil {
		return
	}
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
}

// AtomicWriteFile is the exported form of atomicWriteFile, for packages
// outside core (e.g. templates) that persist structural state alongside
// it and must honor the same lock/fsync/rename discipline.
func AtomicWriteFile(ctx context.Context, target string, data []byte, perm os.FileMode) error {
	return atomicWriteFile(ctx, target, data, perm)
}

// atomicWriteFile holds target's advisory lock while it writes data to a
// temp file beside target, fsyncs it, then renames over target — the
// commit point for every structural persisted file (SessionState,
// operation set, checkpoints).
func atomicWriteFile(ctx context.Context, target string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return durability("create parent dir", err)
	}

	lock, err := acquireFlock(ctx, target+".lock")
	if err != nil {
		return err
	}
	defer releaseFlock(lock)

	tmp := target + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return durability("open temp file", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return durability("write temp file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return durability("fsync temp file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return durability("close temp file", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return durability("rename", err)
	}
	return nil
}

// appendFsync appends data (already newline-terminated if needed) to path
// while holding path's exclusive advisory lock, then fsyncs the descriptor.
// This is the append-commit point for WAL records.
func appendFsync(ctx context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return durability("create parent dir", err)
	}

	lock, err := acquireFlock(ctx, path+".lock")
	if err != nil {
		return err
	}
	defer releaseFlock(lock)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return durability("open wal file", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return durability("append wal record", err)
	}
	if err := f.Sync(); err != nil {
		return durability("fsync wal file", err)
	}
	return nil
}
