package sandbox

import (
	"context"
	"fmt"

	"github.com/JakeFAU/maltrieve/internal/crawler"
)

// DefaultCuckooURL is the file submission endpoint of a local Cuckoo API.
const DefaultCuckooURL = "http://localhost:8090/tasks/create/file"

// Cuckoo queues samples for dynamic analysis.
type Cuckoo struct {
	url    string
	client *Client
}

// NewCuckoo creates a Cuckoo target.
func NewCuckoo(url string, client *Client) *Cuckoo {
	if url == "" {
		url = DefaultCuckooURL
	}
	return &Cuckoo{url: url, client: client}
}

// Name implements Target.
func (c *Cuckoo) Name() string { return "cuckoo" }

// Submit uploads the sample and returns the Cuckoo task id.
func (c *Cuckoo) Submit(ctx context.Context, sample crawler.Sample) (string, error) {
	reply, err := c.client.postFile(ctx, c.url, sample.Hash, sample.Body)
	if err != nil {
		return "", err
	}
	taskID, ok := reply["task_id"]
	if !ok {
		return "", fmt.Errorf("cuckoo response has no task_id")
	}
	// JSON numbers decode as float64
	if n, isNum := taskID.(float64); isNum {
		return fmt.Sprintf("%.0f", n), nil
	}
	return fmt.Sprint(taskID), nil
}
