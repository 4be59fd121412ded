// Package export writes per-user archives of a relay's item log.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/feedsync/feedsync/internal/feed"
	"github.com/feedsync/feedsync/internal/relay"
	"github.com/feedsync/feedsync/internal/report"
)

// Record is one archived item. Archives are JSON lines, oldest item first,
// compressed with zstd.
type Record struct {
	TS   int64          `json:"ts"`
	Sig  feed.Signature `json:"sig"`
	Data []byte         `json:"data"`
}

// Result summarizes one user's export.
type Result struct {
	User  feed.UserRef
	Path  string
	Items int
	Bytes int64 // uncompressed payload bytes
}

// Exporter archives user logs from a single relay.
type Exporter struct {
	client    relay.Client
	relayName string
	pageSize  int
	reporter  report.Reporter
	logger    *zap.Logger
}

func NewExporter(client relay.Client, relayName string, pageSize int, reporter report.Reporter, logger *zap.Logger) *Exporter {
	return &Exporter{
		client:    client,
		relayName: relayName,
		pageSize:  pageSize,
		reporter:  reporter,
		logger:    logger,
	}
}

// ExportUser writes one user's full log to <dir>/<id>.jsonl.zst. The file
// appears atomically: records stream into a temp file that is renamed only
// after the last one is written.
func (e *Exporter) ExportUser(ctx context.Context, user feed.UserRef, dir string) (*Result, error) {
	h := e.reporter.Start(report.Event{Kind: report.KindCopyFile, User: user, Relay: e.relayName})

	var refs []feed.ItemRef
	cursor := ""
	for {
		page, next, err := e.client.ListRefs(ctx, user.ID, cursor, e.pageSize)
		if err != nil {
			h.Error(err.Error())
			return nil, fmt.Errorf("listing refs for %s: %w", user.Label(), err)
		}
		refs = append(refs, page...)
		if next == "" {
			break
		}
		cursor = next
	}

	// Oldest first so archives replay in log order
	for i, j := 0, len(refs)-1; i < j; i, j = i+1, j-1 {
		refs[i], refs[j] = refs[j], refs[i]
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		h.Error(err.Error())
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	path := filepath.Join(dir, archiveName(user.ID))
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		h.Error(err.Error())
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		h.Error(err.Error())
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	result := &Result{User: user, Path: path}
	err = e.writeRecords(ctx, user, refs, enc, result)

	if closeErr := enc.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		h.Error(err.Error())
		return nil, fmt.Errorf("archiving %s: %w", user.Label(), err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		h.Error(err.Error())
		return nil, fmt.Errorf("renaming temp file: %w", err)
	}

	e.logger.Debug("user exported",
		zap.String("user", user.Label()),
		zap.String("path", path),
		zap.Int("items", result.Items),
	)

	h.BytesCopied(result.Bytes)
	h.Success()
	return result, nil
}

func (e *Exporter) writeRecords(ctx context.Context, user feed.UserRef, refs []feed.ItemRef, w io.Writer, result *Result) error {
	for _, ref := range refs {
		data, err := e.client.GetItem(ctx, user.ID, ref.Sig)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", ref, err)
		}

		line, err := json.Marshal(Record{TS: ref.Timestamp, Sig: ref.Sig, Data: data})
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}

		result.Items++
		result.Bytes += int64(len(data))
	}
	return nil
}

// ReadArchive loads every record from an archive written by ExportUser.
func ReadArchive(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	var records []Record
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("decoding record: %w", err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	return records, nil
}

// archiveName maps a user id to a safe file name.
func archiveName(id feed.UserID) string {
	var sb strings.Builder
	for _, r := range string(id) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String() + ".jsonl.zst"
}
