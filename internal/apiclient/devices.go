package apiclient

import (
	"context"
	"fmt"
	"net/http"
)

// DeviceEntry is a WNTD device tracker record.
type DeviceEntry struct {
	ID          int64  `json:"id,omitempty"`
	SiteID      string `json:"site_id"`
	Serial      string `json:"serial"`
	Model       string `json:"model,omitempty"`
	Status      string `json:"status,omitempty"`
	InstalledAt string `json:"installed_at,omitempty"`
}

// DevicesAPI groups WNTD device tracker calls.
type DevicesAPI struct {
	c *Client
}

// Devices returns the device tracker call group.
func (c *Client) Devices() DevicesAPI {
	return DevicesAPI{c: c}
}

// List returns every entry.
func (d DevicesAPI) List(ctx context.Context) ([]DeviceEntry, error) {
	var out list[DeviceEntry]
	if err := d.c.Request(ctx, http.MethodGet, "/wntd/entries/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one entry.
func (d DevicesAPI) Get(ctx context.Context, id int64) (DeviceEntry, error) {
	var out DeviceEntry
	err := d.c.Request(ctx, http.MethodGet, devicePath(id), nil, &out)
	return out, err
}

// Create adds an entry.
func (d DevicesAPI) Create(ctx context.Context, entry DeviceEntry) (DeviceEntry, error) {
	var out DeviceEntry
	err := d.c.Request(ctx, http.MethodPost, "/wntd/entries/", entry, &out)
	return out, err
}

// Update replaces an entry.
func (d DevicesAPI) Update(ctx context.Context, id int64, entry DeviceEntry) (DeviceEntry, error) {
	var out DeviceEntry
	err := d.c.Request(ctx, http.MethodPut, devicePath(id), entry, &out)
	return out, err
}

// Delete removes an entry.
func (d DevicesAPI) Delete(ctx context.Context, id int64) error {
	return d.c.Request(ctx, http.MethodDelete, devicePath(id), nil, nil)
}

func devicePath(id int64) string {
	return fmt.Sprintf("/wntd/entries/%d/", id)
}
