package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/maltrieve/internal/crawler"
)

// ErrLocalCopyKept is returned, wrapped, when VxCage accepted a sample but the
// local copy could not be removed.
var ErrLocalCopyKept = errors.New("local copy kept")

// DefaultVxCageURL is the upload endpoint of a local VxCage instance.
const DefaultVxCageURL = "http://localhost:8080/malware/add"

// VxCage archives samples in a VxCage repository. Once VxCage holds a sample
// the local copy is no longer needed and is removed from the content store.
type VxCage struct {
	url    string
	client *Client
	store  crawler.ContentStore
}

// NewVxCage creates a VxCage target. store may be nil to keep local copies.
func NewVxCage(url string, client *Client, store crawler.ContentStore) *VxCage {
	if url == "" {
		url = DefaultVxCageURL
	}
	return &VxCage{url: url, client: client, store: store}
}

// Name implements Target.
func (v *VxCage) Name() string { return "vxcage" }

// Submit uploads the sample and then deletes the stored copy.
func (v *VxCage) Submit(ctx context.Context, sample crawler.Sample) (string, error) {
	reply, err := v.client.postFile(ctx, v.url, sample.Hash, sample.Body)
	if err != nil {
		return "", err
	}
	message, ok := reply["message"]
	if !ok {
		return "", fmt.Errorf("vxcage response has no message")
	}
	if v.store != nil {
		if err := v.store.Remove(ctx, sample.Hash); err != nil {
			return fmt.Sprint(message), fmt.Errorf("%w: %w", ErrLocalCopyKept, err)
		}
	}
	return fmt.Sprint(message), nil
}
