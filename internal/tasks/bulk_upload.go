package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/shared"
)

// AudioExtensions are the file types [CollectUploads] picks up.
var AudioExtensions = []string{".mp3", ".wav", ".flac", ".ogg", ".m4a", ".aac"}

// BulkUploadOpts contains configuration for bulk track uploads.
type BulkUploadOpts struct {
	NumWorkers int     // Concurrent workers (default: 3, max: 8)
	RateLimit  float64 // Requests per second (default: 2)
}

// UploadFileResult is the outcome for one file of a bulk upload.
type UploadFileResult struct {
	Path   string
	Title  string
	Result *models.UploadResult
	Error  error
}

// Success reports whether the file was accepted.
func (r UploadFileResult) Success() bool {
	return r.Error == nil && r.Result != nil
}

// TrackID returns the id the media service assigned, if any.
func (r UploadFileResult) TrackID() string {
	if r.Result == nil {
		return ""
	}
	return r.Result.Payload.TrackID
}

// BulkUploadResult summarises a bulk upload. Results keep the input order.
type BulkUploadResult struct {
	Total     int
	Succeeded int
	Failed    int
	Results   []UploadFileResult
}

// UploadJob pairs an upload with the file it came from.
type UploadJob struct {
	Path   string
	Upload models.TrackUpload
}

type indexedJob struct {
	index int
	job   UploadJob
}

// CollectUploads reads every audio file directly inside dir into an upload job.
// Titles come from the file name; artist and genre come from template.
func CollectUploads(dir string, template models.TrackUpload) ([]UploadJob, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var jobs []UploadJob
	for _, entry := range entries {
		if entry.IsDir() || !isAudio(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		upload := template
		upload.FileName = entry.Name()
		upload.Content = content
		upload.Title = TitleFromFileName(entry.Name())
		jobs = append(jobs, UploadJob{Path: path, Upload: upload})
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Path < jobs[j].Path })
	return jobs, nil
}

// TitleFromFileName turns "01_my-song.mp3" into "01 my song".
func TitleFromFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

func isAudio(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range AudioExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// BulkUpload uploads many tracks with a bounded worker pool and a shared rate limiter.
//
// A failed file is recorded and the rest continue. Invalid uploads fail locally without a request.
// Cancelling ctx stops workers; files not yet attempted are reported with the context error.
func (e *Engine) BulkUpload(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	token string,
	jobs []UploadJob,
	opts BulkUploadOpts,
) (*BulkUploadResult, error) {
	if token == "" {
		return nil, shared.ErrNotAuthenticated
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 8 {
		opts.NumWorkers = 8
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	total := len(jobs)
	result := &BulkUploadResult{Total: total, Results: make([]UploadFileResult, total)}
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	queue := make(chan indexedJob, total)
	for i, job := range jobs {
		queue <- indexedJob{index: i, job: job}
	}
	close(queue)

	type done struct {
		index int
		res   UploadFileResult
	}
	results := make(chan done, total)

	e.sendProgress(prog, uploadStartedUpdate(total))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				results <- done{index: j.index, res: e.uploadOne(ctx, limiter, token, j.job)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for d := range results {
		completed++
		result.Results[d.index] = d.res
		if d.res.Success() {
			result.Succeeded++
			e.sendProgress(prog, uploadCompletedUpdate(completed, total, d.res))
		} else {
			result.Failed++
			e.sendProgress(prog, uploadFailedUpdate(completed, total, d.res))
		}
	}

	return result, ctx.Err()
}

func (e *Engine) uploadOne(ctx context.Context, limiter *rate.Limiter, token string, job UploadJob) UploadFileResult {
	res := UploadFileResult{Path: job.Path, Title: job.Upload.Title}

	if err := job.Upload.Validate(); err != nil {
		res.Error = err
		return res
	}
	if err := limiter.Wait(ctx); err != nil {
		res.Error = err
		return res
	}

	uploaded, err := e.api.UploadTrack(ctx, token, job.Upload)
	if err != nil {
		res.Error = err
		return res
	}
	res.Result = uploaded
	return res
}
