// Package service orchestrates charger discovery and register polling
// against the gateway transport.
package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/WookyDO/huawei-emma-charger/internal/domain"
)

// IdentificationPager reads one page of the gateway's
// device-identification catalog.
type IdentificationPager interface {
	ReadDeviceIdentification(ctx context.Context, objectID byte) (*domain.IdentificationPage, error)
}

// DefaultMaxPages bounds the paging loop against a device that keeps
// signalling more data.
const DefaultMaxPages = 32

// ReadDeviceCatalog performs the paged device-identification exchange
// starting at the root object and merges all pages into one mapping
// keyed by object ID. Any page failure fails the whole call; partial
// catalogs are never returned.
func ReadDeviceCatalog(ctx context.Context, pager IdentificationPager, maxPages int) (map[int][]byte, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	catalog := make(map[int][]byte)
	objectID := byte(domain.RootObjectID)

	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("%w: gave up after %d pages", domain.ErrTooManyPages, maxPages)
		}

		resp, err := pager.ReadDeviceIdentification(ctx, objectID)
		if err != nil {
			return nil, err
		}
		for id, payload := range resp.Objects {
			catalog[id] = payload
		}

		if !resp.MoreFollows {
			break
		}
		objectID = resp.NextObjectID
	}

	if _, ok := catalog[domain.RootObjectID]; !ok {
		return nil, fmt.Errorf("%w: object 0x%02X", domain.ErrMissingRootObject, domain.RootObjectID)
	}
	return catalog, nil
}

// ReportedDeviceCount decodes the root object's payload as a big-endian
// integer: the gateway's own count of attached sub-devices.
func ReportedDeviceCount(catalog map[int][]byte) int {
	raw := catalog[domain.RootObjectID]
	count := 0
	for _, b := range raw {
		count = count<<8 | int(b)
	}
	return count
}

// Classify filters the catalog for charger sub-devices. Records whose
// type attribute is not "CHARGER" are skipped silently; records that
// look like chargers but carry a missing or non-numeric slave address
// are dropped with a warning. Returned devices are ordered by object ID
// so result keys derive identically every cycle.
func Classify(catalog map[int][]byte, logger zerolog.Logger) []domain.DiscoveredDevice {
	ids := make([]int, 0, len(catalog))
	for id := range catalog {
		if id != domain.RootObjectID {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)

	chargers := make([]domain.DiscoveredDevice, 0, len(ids))
	for _, id := range ids {
		attrs := domain.ParseDeviceDescription(catalog[id])
		if !strings.EqualFold(attrs[domain.AttrIDDeviceType], domain.DeviceTypeCharger) {
			continue
		}
		slaveID, err := strconv.Atoi(attrs[domain.AttrIDSlaveAddress])
		if err != nil {
			logger.Warn().
				Int("object_id", id).
				Str("slave_attr", attrs[domain.AttrIDSlaveAddress]).
				Msg("Charger record has invalid slave address, skipping")
			continue
		}
		chargers = append(chargers, domain.DiscoveredDevice{
			ObjectID:   id,
			Attributes: attrs,
			SlaveID:    slaveID,
		})
		logger.Info().
			Int("object_id", id).
			Int("slave_id", slaveID).
			Str("model", attrs[1]).
			Msg("Charger discovered")
	}

	if len(chargers) == 0 {
		logger.Warn().Msg("No charger sub-devices found behind gateway")
	}
	return chargers
}
