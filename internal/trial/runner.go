// Package trial orchestrates one execution batch of search-term queries:
// slicing the term list across hosts, dispatching the external
// query-runner subprocess per term, and indexing the manifests it leaves
// behind.
package trial

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"colorsweep/internal/domain"
)

const (
	defaultRunnerImage  = "mgraskertheband/qloader:4.5.0"
	defaultEndpoint     = "google-images"
	defaultMaxImages    = 100
	defaultQueryTimeout = 10 * time.Minute
	defaultAttempts     = 3

	timestampLayout = "2006-01-02T15:04:05Z"
)

// Config carries one trial run's settings.
type Config struct {
	ExperimentName string
	TrialID        string
	Hostname       string
	LocalStore     string
	Bucket         string

	RunnerImage  string
	Endpoint     string
	MaxImages    int
	QueryTimeout time.Duration
	Attempts     int

	// RunnerEnv is passed to the subprocess as --env flags, typically
	// the object-store credentials the runner uploads with.
	RunnerEnv map[string]string

	BatchSlice          string
	SkipAlreadySearched bool
	SkipVectors         bool
	DryRun              bool
	Overwrite           bool
}

func (c *Config) applyDefaults() {
	if c.RunnerImage == "" {
		c.RunnerImage = defaultRunnerImage
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint
	}
	if c.MaxImages == 0 {
		c.MaxImages = defaultMaxImages
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = defaultQueryTimeout
	}
	if c.Attempts == 0 {
		c.Attempts = defaultAttempts
	}
}

// Runner drives the per-term trial loop.
type Runner struct {
	docs    DocumentStore
	objects ObjectStore
	exec    CommandRunner
	collect ColorgramCollector
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
}

// New creates a trial runner. Colorgram production is off until a
// collector is attached with WithCollector.
func New(docs DocumentStore, objects ObjectStore, exec CommandRunner, cfg Config, log *zap.Logger) *Runner {
	cfg.applyDefaults()
	return &Runner{
		docs:    docs,
		objects: objects,
		exec:    exec,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// WithCollector attaches per-term colorgram production.
func (r *Runner) WithCollector(collect ColorgramCollector) *Runner {
	r.collect = collect
	return r
}

// WithNow overrides the trial clock.
func (r *Runner) WithNow(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run executes the trial over the given terms. Per term: skip if already
// searched from this host, dispatch the subprocess, index the manifest.
// A subprocess timeout abandons the term and continues; a subprocess
// failure is retried up to the attempt bound and then fatal.
func (r *Runner) Run(ctx context.Context, terms []Term) error {
	trialTimestamp := r.now().UTC().Format(timestampLayout)

	if r.cfg.BatchSlice != "" {
		var err error
		terms, err = Slice(terms, r.cfg.BatchSlice)
		if err != nil {
			return err
		}
		r.log.Info("running a slice of the experiment",
			zap.String("slice", r.cfg.BatchSlice),
			zap.String("experiment", r.cfg.ExperimentName),
			zap.Int("terms", len(terms)))
	}

	for _, term := range terms {
		if r.cfg.SkipAlreadySearched {
			searched, err := r.docs.Exists(ctx, domain.RawImagesIndex, map[string]any{
				"hostname": r.cfg.Hostname,
				"query":    term.Query,
				"trial_id": r.cfg.TrialID,
			}, []string{"hostname", "query", "trial_id"}, false)
			if err != nil {
				return fmt.Errorf("already-searched check for %q: %w", term.Query, err)
			}
			if searched {
				r.log.Info("already searched from this host",
					zap.String("query", term.Query), zap.String("trial_id", r.cfg.TrialID))
				continue
			}
		}

		if r.cfg.DryRun {
			r.log.Info("[DRY RUN] would run search", zap.String("query", term.Query))
			continue
		}

		if err := r.writeMetadata(term, trialTimestamp); err != nil {
			return err
		}

		r.log.Info("running query-runner",
			zap.String("image", r.cfg.RunnerImage), zap.String("query", term.Query))
		if err := r.search(ctx, term, trialTimestamp); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				r.log.Error("query took longer than the timeout, skipping term",
					zap.String("query", term.Query),
					zap.Duration("timeout", r.cfg.QueryTimeout))
				continue
			}
			return fmt.Errorf("query-runner for %q: %w", term.Query, err)
		}

		if err := r.indexManifest(ctx, term, trialTimestamp); err != nil {
			return err
		}
	}
	return nil
}

// writeMetadata leaves the shared document metadata where the subprocess
// expects to find it.
func (r *Runner) writeMetadata(term Term, trialTimestamp string) error {
	metadata := map[string]string{
		"trial_id":        r.cfg.TrialID,
		"hostname":        r.cfg.Hostname,
		"trial_timestamp": trialTimestamp,
		"experiment_name": r.cfg.ExperimentName,
		"region":          r.cfg.Hostname,
	}
	for k, v := range term.Metadata {
		metadata[k] = v
	}
	body, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("encode search metadata: %w", err)
	}
	path := r.metadataPath(trialTimestamp)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write search metadata: %w", err)
	}
	return nil
}

func (r *Runner) metadataPath(trialTimestamp string) string {
	return filepath.Join(r.cfg.LocalStore, r.cfg.TrialID,
		fmt.Sprintf(".metadata-%s.json", trialTimestamp))
}

// search dispatches one subprocess call with a per-call timeout, retrying
// non-timeout failures up to the attempt bound. A timeout surfaces as
// context.DeadlineExceeded for the caller's soft-skip path.
func (r *Runner) search(ctx context.Context, term Term, trialTimestamp string) error {
	args := r.commandArgs(term, trialTimestamp)
	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
		defer cancel()
		err := r.exec.Run(callCtx, "docker", args...)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return backoff.Permanent(fmt.Errorf("query-runner: %w", context.DeadlineExceeded))
		}
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(r.cfg.Attempts-1))
	return backoff.Retry(operation, backoff.WithContext(bo, ctx))
}

// commandArgs builds the docker invocation of the query-runner image.
func (r *Runner) commandArgs(term Term, trialTimestamp string) []string {
	args := []string{
		"run",
		"--user", "1000:1000",
		"--shm-size=2g",
		"-v", r.cfg.LocalStore + ":/tmp/colorsweep",
	}
	envKeys := make([]string, 0, len(r.cfg.RunnerEnv))
	for k := range r.cfg.RunnerEnv {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		args = append(args, "--env", k+"="+r.cfg.RunnerEnv[k])
	}
	args = append(args,
		r.cfg.RunnerImage,
		"--trial-id", r.cfg.TrialID,
		"--hostname", r.cfg.Hostname,
		"--ran-at", trialTimestamp,
		"--endpoint", r.cfg.Endpoint,
		"--query-terms", term.Query,
		"--max-images", fmt.Sprintf("%d", r.cfg.MaxImages),
		"--output-path", "/tmp/colorsweep/",
		"--metadata-path", fmt.Sprintf("/tmp/colorsweep/%s/.metadata-%s.json", r.cfg.TrialID, trialTimestamp),
	)
	return args
}

// indexManifest reads the manifest the subprocess must have produced and
// bulk-indexes its records, then optionally produces colorgrams from the
// downloaded images.
func (r *Runner) indexManifest(ctx context.Context, term Term, trialTimestamp string) error {
	manifestPath := ManifestPath(r.cfg.LocalStore, r.cfg.TrialID, r.cfg.Hostname, trialTimestamp)
	images, err := ReadManifest(manifestPath)
	if err != nil {
		return err
	}

	docs := make([]map[string]any, len(images))
	for i, img := range images {
		if img.ExperimentName == "" {
			img.ExperimentName = r.cfg.ExperimentName
		}
		docs[i] = img.Fields()
	}
	stats, err := r.docs.BulkIndex(ctx, domain.RawImagesIndex, docs, domain.RawImageIdentity, r.cfg.Overwrite)
	if err != nil {
		return fmt.Errorf("index manifest for %q: %w", term.Query, err)
	}
	r.log.Info("manifest indexed",
		zap.String("query", term.Query),
		zap.Int("indexed", stats.Indexed), zap.Int("skipped", stats.Skipped))

	if r.cfg.SkipVectors || r.collect == nil {
		return nil
	}
	return r.produceColorgrams(ctx, term, trialTimestamp)
}

// produceColorgrams stages this term's downloads into a slug-named folder
// and runs the collector over it, uploading each artifact and indexing
// its document.
func (r *Runner) produceColorgrams(ctx context.Context, term Term, trialTimestamp string) error {
	queryDownloads := filepath.Join(r.cfg.LocalStore, r.cfg.TrialID, r.cfg.Hostname, trialTimestamp)
	stem := fmt.Sprintf("query=%s|hostname=%s|trial_timestamp=%s", term.Query, r.cfg.Hostname, trialTimestamp)
	stage := filepath.Join(queryDownloads, "vector", stem)

	// clear staging leftovers from a previous run of the same term
	if err := os.RemoveAll(stage); err != nil {
		return fmt.Errorf("clear staging folder: %w", err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return fmt.Errorf("create staging folder: %w", err)
	}
	downloaded, err := filepath.Glob(filepath.Join(queryDownloads, "images", "*.jpg"))
	if err != nil {
		return fmt.Errorf("glob downloaded images: %w", err)
	}
	for _, src := range downloaded {
		body, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("read downloaded image: %w", err)
		}
		if err := os.WriteFile(filepath.Join(stage, filepath.Base(src)), body, 0o644); err != nil {
			return fmt.Errorf("stage downloaded image: %w", err)
		}
	}

	results, err := r.collect(ctx, filepath.Join(queryDownloads, "vector"))
	if err != nil {
		return fmt.Errorf("collect colorgrams for %q: %w", term.Query, err)
	}

	docs := make([]map[string]any, 0, len(results))
	for _, result := range results {
		result.Doc.ExperimentName = r.cfg.ExperimentName
		if err := r.objects.Put(ctx, r.cfg.Bucket, result.Doc.Path(), result.PNG, true); err != nil {
			return fmt.Errorf("upload colorgram %s: %w", result.Doc.S3Key, err)
		}
		docs = append(docs, result.Doc.Fields())
	}
	if len(docs) == 0 {
		return nil
	}
	stats, err := r.docs.BulkIndex(ctx, domain.ColorgramsIndex, docs, domain.ColorgramIdentity, false)
	if err != nil {
		return fmt.Errorf("index colorgrams for %q: %w", term.Query, err)
	}
	r.log.Info("colorgrams indexed",
		zap.String("query", term.Query),
		zap.Int("indexed", stats.Indexed), zap.Int("skipped", stats.Skipped))
	return nil
}
