package workers

import (
	"testing"

	"japanhouse/models"
)

func TestArchiverEnqueueAfterStop(t *testing.T) {
	a := NewArchiver(nil)
	a.Stop()

	// Must not panic on the closed queue; the listings are dropped.
	a.Enqueue([]models.Listing{
		{
			Source:   "suumo",
			SourceID: "12345",
			Images:   []string{"https://img.example.com/1.jpg"},
		},
	})
}

func TestArchiverStopIdempotent(t *testing.T) {
	a := NewArchiver(nil)
	a.Stop()
	a.Stop()
}
