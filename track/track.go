// Package track keeps the fleet's live telemetry in Redis: a per-bike
// position blob with a TTL and a geo index for nearby queries. Postgres
// remains the system of record; this cache only serves reads that must not
// touch it on every position update.
package track

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/semanticallynull/fleetengine-backend/geo"
)

const geoIndexKey = "geo:bikes"

// Position is a bike's last reported location.
type Position struct {
	BikeLabel  string    `json:"bikeLabel"`
	Lat        float64   `json:"latitude"`
	Lng        float64   `json:"longitude"`
	DistanceKm float64   `json:"distanceKm,omitempty"`
	ReportedAt time.Time `json:"reportedAt"`
}

type Service struct {
	client *redis.Client
	ttl    time.Duration
}

func NewService(client *redis.Client, ttl time.Duration) *Service {
	return &Service{client: client, ttl: ttl}
}

// SetPosition stores the position blob and updates the geo index.
func (s *Service) SetPosition(ctx context.Context, pos Position) error {
	if err := (geo.Point{Lat: pos.Lat, Lng: pos.Lng}).Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	if err := s.client.Set(ctx, positionKey(pos.BikeLabel), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache position: %w", err)
	}

	if err := s.client.GeoAdd(ctx, geoIndexKey, &redis.GeoLocation{
		Name:      pos.BikeLabel,
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err(); err != nil {
		return fmt.Errorf("failed to update geo index: %w", err)
	}

	return nil
}

// GetPosition returns the cached position, or nil if the TTL has lapsed.
func (s *Service) GetPosition(ctx context.Context, bikeLabel string) (*Position, error) {
	data, err := s.client.Get(ctx, positionKey(bikeLabel)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached position: %w", err)
	}

	var pos Position
	if err := json.Unmarshal([]byte(data), &pos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position: %w", err)
	}
	return &pos, nil
}

// NearbyBikes returns up to n bikes within radiusKm of center, closest first.
func (s *Service) NearbyBikes(ctx context.Context, center geo.Point, radiusKm float64, n int) ([]Position, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}

	results, err := s.client.GeoSearchLocation(ctx, geoIndexKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lng,
			Latitude:   center.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      n,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to search geo index: %w", err)
	}

	positions := make([]Position, 0, len(results))
	for _, loc := range results {
		pos, err := s.GetPosition(ctx, loc.Name)
		if err != nil || pos == nil {
			// Geo index entries outlive the blob TTL; skip stale members.
			continue
		}
		pos.DistanceKm = loc.Dist
		positions = append(positions, *pos)
	}
	return positions, nil
}

func positionKey(bikeLabel string) string {
	return "bike:position:" + bikeLabel
}
