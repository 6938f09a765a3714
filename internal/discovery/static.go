package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/provwatch/provwatch/internal/models"
	"github.com/provwatch/provwatch/internal/normalize"
)

// StaticListing is one fixture record for a file-backed channel: ad
// platform exports, directory dumps, manual tips.
type StaticListing struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// StaticSource replays fixture listings as discovered records. Keywords
// and region are ignored; whatever the file says was seen, was seen.
type StaticSource struct {
	channel  models.SourceChannel
	listings []StaticListing
}

// NewStaticSource returns a source replaying listings under the given
// channel tag.
func NewStaticSource(channel models.SourceChannel, listings []StaticListing) *StaticSource {
	return &StaticSource{channel: channel, listings: listings}
}

// Name implements Source.
func (s *StaticSource) Name() models.SourceChannel { return s.channel }

// Discover implements Source.
func (s *StaticSource) Discover(ctx context.Context, region string, keywords []string) ([]models.Provider, error) {
	out := make([]models.Provider, 0, len(s.listings))
	for _, l := range s.listings {
		if l.Name == "" {
			continue
		}
		p := models.Provider{
			ID:             uuid.New().String(),
			NormalizedName: normalize.Name(l.Name),
			RawNames:       []string{l.Name},
		}
		if l.Address != "" {
			p.Address = models.StrPtr(l.Address)
		}
		if l.City != "" {
			p.City = models.StrPtr(l.City)
		}
		if l.State != "" {
			p.State = models.StrPtr(l.State)
		}
		if l.Phone != "" {
			p.Phone = models.StrPtr(l.Phone)
		}
		if l.Website != "" {
			p.Website = models.StrPtr(l.Website)
		}

		p.Signals.DiscoveredVia = []models.SourceChannel{s.channel}
		switch s.channel {
		case models.SourceMaps:
			p.Signals.HasMapListing = true
		case models.SourceAdPlatform:
			p.Signals.HasAdPresence = true
		case models.SourceDirectory:
			p.Signals.HasDirectoryListing = true
		}
		out = append(out, p)
	}
	return out, nil
}

// LoadListings reads a JSON array of StaticListing from path.
func LoadListings(path string) ([]StaticListing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading listings file: %w", err)
	}
	var listings []StaticListing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("parsing listings file %s: %w", path, err)
	}
	return listings, nil
}
