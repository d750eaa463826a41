package trackings

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/services/orderstate"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	suffixLen      = 16
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultDays    = 5
)

var trackingPrefixes = map[string]string{
	"ups":   "1Z",
	"fedex": "FX",
	"dhl":   "JD",
	"usps":  "94",
}

var trackingURLs = map[string]string{
	"ups":   "https://www.ups.com/track?tracknum=%s",
	"fedex": "https://www.fedex.com/fedextrack/?trknbr=%s",
	"dhl":   "https://www.dhl.com/global-en/home/tracking.html?tracking-id=%s",
	"usps":  "https://tools.usps.com/go/TrackConfirmAction?tLabels=%s",
}

// business days per service type
var serviceDays = map[string]int{
	"standard":  5,
	"expedited": 3,
	"overnight": 1,
	"two_day":   2,
}

type PackageInfo struct {
	Weight         decimal.Decimal
	Dimensions     models.Dimensions
	InsuranceValue decimal.Decimal
}

type LabelInput struct {
	OrderID     string
	Carrier     string
	ServiceType string
	Package     PackageInfo
}

// CreateLabel issues shipping info with a synthetic tracking number and
// moves the order to ready_to_ship.
func (s *Service) CreateLabel(ctx context.Context, actor models.Actor, in LabelInput) (*models.ShippingInfo, error) {
	code := carrier.NormalizeCode(in.Carrier)
	if _, ok := trackingPrefixes[code]; !ok {
		return nil, errors.Wrapf(ErrUnsupportedCarrier, "%q", in.Carrier)
	}

	o, err := s.repo.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if !actor.IsAdmin() && actor.UserID != o.SellerID {
		return nil, ErrForbidden
	}
	if !orderstate.CanCreateLabel(o.Status) {
		return nil, errors.Wrapf(ErrInvalidState, "status %s", o.Status)
	}

	number, err := GenerateTrackingNumber(code, rand.Reader)
	if err != nil {
		return nil, err
	}
	eta := AddBusinessDays(s.now().UTC(), BusinessDays(in.ServiceType))

	info := models.ShippingInfo{
		Carrier:           code,
		ServiceType:       in.ServiceType,
		TrackingNumber:    number,
		TrackingURL:       fmt.Sprintf(trackingURLs[code], number),
		EstimatedDelivery: &eta,
		Weight:            in.Package.Weight,
		Dimensions:        in.Package.Dimensions,
		InsuranceValue:    in.Package.InsuranceValue,
	}
	if err := s.repo.SaveShippingInfo(ctx, o.ID, info, models.OrderStatusReadyToShip); err != nil {
		return nil, errors.Wrap(err, "save shipping info")
	}
	return &info, nil
}

// GenerateTrackingNumber is the carrier prefix followed by 16 random
// upper-case alphanumerics read from r.
func GenerateTrackingNumber(carrierCode string, r io.Reader) (string, error) {
	prefix, ok := trackingPrefixes[carrier.NormalizeCode(carrierCode)]
	if !ok {
		return "", errors.Wrapf(ErrUnsupportedCarrier, "%q", carrierCode)
	}
	buf := make([]byte, suffixLen)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range buf {
		n, err := rand.Int(r, max)
		if err != nil {
			return "", errors.Wrap(err, "random tracking suffix")
		}
		buf[i] = suffixAlphabet[n.Int64()]
	}
	return prefix + string(buf), nil
}

// BusinessDays maps a service type to its delivery estimate, 5 if unknown.
func BusinessDays(serviceType string) int {
	if d, ok := serviceDays[serviceType]; ok {
		return d
	}
	return defaultDays
}

// AddBusinessDays moves from forward n weekdays, skipping Saturday and Sunday.
func AddBusinessDays(from time.Time, n int) time.Time {
	t := from
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		n--
	}
	return t
}
