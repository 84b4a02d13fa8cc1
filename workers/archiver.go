// Package workers holds the background jobs that run beside the scrape
// pipeline.
package workers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"japanhouse/models"
	"japanhouse/storage"
)

const (
	archiveQueueSize = 256
	archiveWorkers   = 3
	maxImageBytes    = 10 * 1024 * 1024
)

type archiveJob struct {
	source   string
	sourceID string
	imageURL string
}

// Archiver mirrors listing images into S3-compatible storage in the
// background. Enqueue never blocks the scrape: when the queue is full the
// overflow is dropped with a warning, not queued against the run.
type Archiver struct {
	uploader *storage.S3Uploader
	client   *http.Client
	jobs     chan archiveJob
	wg       sync.WaitGroup
	cancel   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func NewArchiver(uploader *storage.S3Uploader) *Archiver {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Archiver{
		uploader: uploader,
		client:   &http.Client{Timeout: 30 * time.Second},
		jobs:     make(chan archiveJob, archiveQueueSize),
		cancel:   cancel,
	}

	for i := 0; i < archiveWorkers; i++ {
		a.wg.Add(1)
		go a.run(ctx)
	}

	return a
}

// Enqueue queues every image of the given listings for archival. After Stop
// it becomes a no-op so late callers cannot hit the closed queue.
func (a *Archiver) Enqueue(listings []models.Listing) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		log.Printf("Warning: archiver stopped, dropping %d listings", len(listings))
		return
	}

	for _, listing := range listings {
		for _, imageURL := range listing.Images {
			job := archiveJob{
				source:   listing.Source,
				sourceID: listing.SourceID,
				imageURL: imageURL,
			}
			select {
			case a.jobs <- job:
			default:
				log.Printf("Warning: archive queue full, dropping image %s", imageURL)
			}
		}
	}
}

// Stop drains the queue and waits for in-flight uploads. Safe to call more
// than once.
func (a *Archiver) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.jobs)
	a.mu.Unlock()

	a.wg.Wait()
	a.cancel()
}

func (a *Archiver) run(ctx context.Context) {
	defer a.wg.Done()

	for job := range a.jobs {
		if ctx.Err() != nil {
			return
		}
		if err := a.archive(ctx, job); err != nil {
			log.Printf("Warning: archive %s: %v", job.imageURL, err)
		}
	}
}

func (a *Archiver) archive(ctx context.Context, job archiveJob) error {
	key := storage.ImageKey(job.source, job.sourceID, job.imageURL)

	exists, err := a.uploader.Exists(ctx, key)
	if err == nil && exists {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", job.imageURL, nil)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	body := io.LimitReader(resp.Body, maxImageBytes)
	return a.uploader.Upload(ctx, key, body, contentType)
}
