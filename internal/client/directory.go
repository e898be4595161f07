package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iliyamo/specialist-booking/internal/model"
)

// DirectoryClient reads specialists and their price lists.
type DirectoryClient struct {
	base
}

// NewDirectoryClient targets baseURL (which includes any API prefix).
func NewDirectoryClient(baseURL string, timeout time.Duration, log *slog.Logger) *DirectoryClient {
	return &DirectoryClient{base: newBase(baseURL, timeout, log)}
}

// GetSpecialist calls GET /specialists/{id}.  404 yields ErrNotFound.
func (c *DirectoryClient) GetSpecialist(ctx context.Context, id uint64) (*model.Specialist, error) {
	const op = "client.directory.get_specialist"
	r, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/specialists/%d", id), nil, nil)
	if err != nil {
		return nil, err
	}
	switch r.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s %d: %w", op, id, ErrNotFound)
	default:
		return nil, c.unexpected(op, r)
	}
	sp := model.Specialist{ID: id}
	if err := r.decode(&sp); err != nil {
		// Existence is what matters; tolerate bodies we cannot read.
		c.log.DebugContext(ctx, op+".decode_failed", "specialist_id", id, "error", err)
		sp = model.Specialist{ID: id}
	}
	return &sp, nil
}

// ListServices calls GET /specialists/{id}/services.
func (c *DirectoryClient) ListServices(ctx context.Context, specialistID uint64) ([]model.ServiceOffering, error) {
	const op = "client.directory.list_services"
	r, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("/specialists/%d/services", specialistID), nil, nil)
	if err != nil {
		return nil, err
	}
	switch r.status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s %d: %w", op, specialistID, ErrNotFound)
	default:
		return nil, c.unexpected(op, r)
	}
	var out []model.ServiceOffering
	if err := r.decode(&out); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return out, nil
}
