// Package archive uploads rotated-out logfiles to an S3-compatible
// backend once the logger has finished writing to them, optionally
// deleting the local copy so disk usage tracks only the retention
// window the archival destination doesn't yet cover. Grounded on
// internal/s3/client.go (already adapted to config.ArchiveConfig), kept
// in the teacher's split of "thin client wrapper" (s3.Client) from
// "policy that decides what to do with it" (this package).
package archive

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kenneth/pinenut/internal/config"
	"github.com/kenneth/pinenut/internal/logfile"
	"github.com/kenneth/pinenut/internal/s3"
)

// Archiver uploads rotated logfiles to a configured S3-compatible
// bucket, keyed by "<prefix>/<identifier>/<file name>".
type Archiver struct {
	client s3.Client
	cfg    config.ArchiveConfig
}

// New constructs an Archiver, or returns (nil, nil) if archival is
// disabled in cfg so callers can treat a nil *Archiver as a no-op
// without an extra enabled check at every call site.
func New(cfg config.ArchiveConfig) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	client, err := s3.NewClient(&cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: new client: %w", err)
	}
	return &Archiver{client: client, cfg: cfg}, nil
}

// key returns the destination object key for a logfile named name.
func (a *Archiver) key(identifier, name string) string {
	return filepath.ToSlash(filepath.Join(a.cfg.Prefix, identifier, name))
}

// Upload archives a single rotated logfile, verbatim, tagging the
// object with the identifier and the file's embedded unix-second
// timestamp so a lifecycle policy or later audit can filter by domain
// without parsing the key. If cfg.DeleteAfterUpload is set, the local
// file is removed once the upload durably completes; otherwise it's
// left on disk for Trim to reap on its own schedule.
func (a *Archiver) Upload(ctx context.Context, identifier string, f *logfile.Logfile) error {
	file, err := f.Open()
	if err != nil {
		return fmt.Errorf("archive: open %s: %w", f.Name(), err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("archive: seek %s: %w", f.Name(), err)
	}

	metadata := map[string]string{
		"identifier": identifier,
		"unix-time":  fmt.Sprintf("%d", f.DateTime().Unix()),
	}
	if err := a.client.PutObject(ctx, a.cfg.Bucket, a.key(identifier, f.Name()), file, metadata); err != nil {
		return fmt.Errorf("archive: put %s: %w", f.Name(), err)
	}

	if a.cfg.DeleteAfterUpload {
		if err := f.Delete(); err != nil {
			return fmt.Errorf("archive: delete uploaded %s: %w", f.Name(), err)
		}
	}
	return nil
}

// UploadAll archives every logfile for identifier in directory that
// isn't the one currently open for writing (current, which may be nil
// if the logger has no open logfile yet — e.g. it hasn't written its
// first record). It's meant to be called periodically, or right after a
// rotation, rather than per chunk: re-uploading an already-archived file
// is harmless but wasteful.
func (a *Archiver) UploadAll(ctx context.Context, directory, identifier string, current *logfile.Logfile) error {
	files, err := logfile.List(directory, identifier, logfile.ModeRead)
	if err != nil {
		return fmt.Errorf("archive: list %s: %w", directory, err)
	}
	for _, f := range files {
		if current != nil && f.Path() == current.Path() {
			continue
		}
		if err := a.Upload(ctx, identifier, f); err != nil {
			return err
		}
	}
	return nil
}
