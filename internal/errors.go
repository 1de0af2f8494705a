package internal

import "github.com/cockroachdb/errors"

// Error kinds, checked with errors.Is. Marks survive wrapping, so every layer
// can add context without losing the classification.
//
//   - ErrAuth: the credential was rejected outright, or none could ever be
//     obtained. The host should start a re-authentication flow.
//   - ErrFetch: a network or remote failure during discovery or price fetch.
//     Recoverable; callers fall back to cached data when they have any.
//   - ErrConfig: invalid configuration, rejected before any update runs.
var (
	ErrAuth   = errors.New("authentication failed")
	ErrFetch  = errors.New("fetch failed")
	ErrConfig = errors.New("invalid configuration")
)

// ATTRIBUTION is required by the Fuel Finder terms of use on any redistributed data.
var ATTRIBUTION = []string{
	"Contains public sector information licensed under the Open Government Licence v3.0.",
	"Source: GOV.UK Fuel Finder, https://www.fuel-finder.service.gov.uk",
}
