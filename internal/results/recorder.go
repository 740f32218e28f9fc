// Package results persists scan output: one JSON record per domain, a run
// manifest, and an offline aggregation over a finished run directory.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/noticescan/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const manifestName = "manifest.json"

// Recorder owns one run directory. WriteRecord is safe for concurrent use by
// the scan workers.
type Recorder struct {
	logger *zap.Logger
	dir    string

	mu       sync.Mutex
	manifest schemas.RunManifest
}

// NewRecorder creates results/<runID>/ and writes the initial manifest so an
// aborted process still leaves evidence of the attempt.
func NewRecorder(logger *zap.Logger, manifest schemas.RunManifest) (*Recorder, error) {
	dir := filepath.Join(manifest.ResultsDir, manifest.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	manifest.Status = schemas.RunRunning
	r := &Recorder{
		logger:   logger.Named("recorder"),
		dir:      dir,
		manifest: manifest,
	}
	if err := r.writeManifestLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

// Dir returns the run directory.
func (r *Recorder) Dir() string { return r.dir }

// WriteRecord durably persists one domain's record and folds it into the
// manifest counts. The write goes to a temp file first and is renamed into
// place, so a crash never leaves a half-written record.
func (r *Recorder) WriteRecord(rec *schemas.ScanRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record for %s: %w", rec.Domain, err)
	}

	name := recordFileName(rec.Rank, rec.Domain)
	if err := writeDurable(r.dir, name, data); err != nil {
		return fmt.Errorf("persist record for %s: %w", rec.Domain, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	counts := &r.manifest.Counts
	counts.Total++
	switch {
	case rec.Navigation.Status == schemas.NavTimeout:
		counts.Timeouts++
	case rec.Navigation.Status == schemas.NavNetworkError:
		counts.NetworkErrors++
	case rec.Error != "":
		counts.Errors++
	case rec.Detection.Label != schemas.LabelNone:
		counts.Detected++
	default:
		counts.NoNotice++
	}

	r.logger.Debug("Record written.", zap.String("domain", rec.Domain), zap.String("file", name))
	return nil
}

// WriteScreenshot stores PNG bytes next to the domain's record and returns
// the file name for embedding into the record.
func (r *Recorder) WriteScreenshot(rank int, domain string, data []byte) (string, error) {
	name := fmt.Sprintf("%04d-%s-notice.png", rank, sanitize(domain))
	if err := writeDurable(r.dir, name, data); err != nil {
		return "", fmt.Errorf("persist screenshot for %s: %w", domain, err)
	}
	return name, nil
}

// Finalize stamps the manifest with the terminal status and flushes it.
func (r *Recorder) Finalize(status schemas.RunStatus, finishedAt time.Time, failureReason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifest.Status = status
	r.manifest.FinishedAt = finishedAt
	r.manifest.FailureReason = failureReason
	return r.writeManifestLocked()
}

func (r *Recorder) writeManifestLocked() error {
	data, err := json.MarshalIndent(&r.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeDurable(r.dir, manifestName, data); err != nil {
		return fmt.Errorf("persist manifest: %w", err)
	}
	return nil
}

// recordFileName is "<rank>-<domain>.json" with the rank zero-padded so a
// directory listing sorts in scan order.
func recordFileName(rank int, domain string) string {
	return fmt.Sprintf("%04d-%s.json", rank, sanitize(domain))
}

func sanitize(domain string) string {
	replacer := strings.NewReplacer("/", "_", ":", "_", "\\", "_", "..", "_")
	return replacer.Replace(domain)
}

// writeDurable writes data to dir/name via a temp file, fsync, and rename,
// then syncs the directory so the rename itself survives a crash.
func writeDurable(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return err
	}

	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
