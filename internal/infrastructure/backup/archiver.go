package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/pkg/backup"

	"go.uber.org/zap"
)

const (
	metaPrefix = "rec-"
	metaSuffix = ".json"
	dataSuffix = ".bin"
)

// Archiver copies recordings out of the store into archive storage and
// can replay them back after a store wipe. Each recording becomes two
// objects: rec-<id>.bin with the payload and rec-<id>.json with the
// metadata, written second so a present .json always means a complete
// .bin.
type Archiver struct {
	store   ports.RecordingStore
	storage backup.Storage
	logger  *zap.SugaredLogger
}

func NewArchiver(store ports.RecordingStore, storage backup.Storage, logger *zap.SugaredLogger) *Archiver {
	return &Archiver{
		store:   store,
		storage: storage,
		logger:  logger,
	}
}

func metaName(id domain.RecordingID) string { return metaPrefix + string(id) + metaSuffix }
func dataName(id domain.RecordingID) string { return metaPrefix + string(id) + dataSuffix }

// Run archives every recording not yet present in storage. Failures on
// individual recordings are logged and skipped so one bad blob does not
// starve the rest; the first error is reported after the sweep.
func (a *Archiver) Run(ctx context.Context) error {
	recs, err := a.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list recordings: %w", err)
	}

	archived, err := a.archivedIDs(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	var copied int
	for _, rec := range recs {
		if archived[rec.ID] {
			continue
		}
		if err := a.archiveOne(ctx, rec); err != nil {
			a.logger.Warnw("failed to archive recording", "recording_id", rec.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		copied++
	}

	if copied > 0 {
		a.logger.Infow("archived recordings", "count", copied)
	}
	return firstErr
}

func (a *Archiver) archiveOne(ctx context.Context, rec *domain.Recording) error {
	src, err := a.store.Open(ctx, rec.ID)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := a.storage.Save(ctx, dataName(rec.ID), src); err != nil {
		return err
	}

	meta, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return a.storage.Save(ctx, metaName(rec.ID), strings.NewReader(string(meta)))
}

// Restore uploads archived recordings missing from the store. Restored
// recordings get fresh ids; the archive objects are kept.
func (a *Archiver) Restore(ctx context.Context) (int, error) {
	names, err := a.storage.List(ctx, metaPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list archives: %w", err)
	}

	present, err := a.storedFilenames(ctx)
	if err != nil {
		return 0, err
	}

	var restored int
	for _, name := range names {
		if !strings.HasSuffix(name, metaSuffix) {
			continue
		}

		rec, err := a.loadMeta(ctx, name)
		if err != nil {
			a.logger.Warnw("skipping unreadable archive metadata", "name", name, "error", err)
			continue
		}
		if present[rec.Filename] {
			continue
		}

		data, err := a.storage.Load(ctx, dataName(rec.ID))
		if err != nil {
			a.logger.Warnw("archive payload missing", "recording_id", rec.ID, "error", err)
			continue
		}
		_, err = a.store.Upload(ctx, rec.Filename, rec.ContentType, data)
		data.Close()
		if err != nil {
			return restored, fmt.Errorf("failed to restore recording %s: %w", rec.ID, err)
		}
		restored++
	}

	if restored > 0 {
		a.logger.Infow("restored recordings from archive", "count", restored)
	}
	return restored, nil
}

func (a *Archiver) archivedIDs(ctx context.Context) (map[domain.RecordingID]bool, error) {
	names, err := a.storage.List(ctx, metaPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	ids := make(map[domain.RecordingID]bool, len(names))
	for _, name := range names {
		if strings.HasSuffix(name, metaSuffix) {
			id := strings.TrimSuffix(strings.TrimPrefix(name, metaPrefix), metaSuffix)
			ids[domain.RecordingID(id)] = true
		}
	}
	return ids, nil
}

func (a *Archiver) storedFilenames(ctx context.Context) (map[string]bool, error) {
	recs, err := a.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	names := make(map[string]bool, len(recs))
	for _, rec := range recs {
		names[rec.Filename] = true
	}
	return names, nil
}

func (a *Archiver) loadMeta(ctx context.Context, name string) (*domain.Recording, error) {
	r, err := a.storage.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var rec domain.Recording
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
