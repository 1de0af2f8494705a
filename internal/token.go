package internal

import (
	"context"
	"log"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fuelwatch/fuelwatch/internal/models"
)

// tokenSafetyMargin is how long before the declared expiry we stop trusting a
// cached token and exchange a fresh one.
const tokenSafetyMargin = 5 * time.Minute

// Credential is an access token with its absolute expiry.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// CredentialManager owns the cached Credential. It is not safe for unmanaged
// concurrent use: callers go through the coordinator's single-flight
// discipline, which is the only writer.
type CredentialManager struct {
	client       FuelFinderClient
	clientId     string
	clientSecret string
	now          func() time.Time

	cred *Credential
}

func NewCredentialManager(client FuelFinderClient, clientId, clientSecret string) *CredentialManager {
	return &CredentialManager{
		client:       client,
		clientId:     clientId,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// EnsureToken returns a Credential that is valid now, exchanging a new one if
// the cached token is missing or inside the safety margin. When the exchange
// fails transiently and a previous Credential exists (even an expired one) it
// is returned with stale=true so the pipeline can degrade instead of stop.
// The error is marked ErrAuth when the provider rejected us, or when no
// credential has ever been obtained.
func (mgr *CredentialManager) EnsureToken(ctx context.Context) (Credential, bool, error) {
	if mgr.cred != nil && mgr.now().Before(mgr.cred.ExpiresAt.Add(-tokenSafetyMargin)) {
		return *mgr.cred, false, nil
	}

	data, err := mgr.exchange(ctx)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			// Rejection always surfaces: the host needs to re-authenticate.
			return Credential{}, false, err
		}
		if mgr.cred != nil {
			log.Printf("token exchange failed, falling back to stale credential: %v", err)
			return *mgr.cred, true, nil
		}
		return Credential{}, false, errors.Mark(errors.Wrap(err, "no credential has ever been obtained"), ErrAuth)
	}

	expiresIn := data.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	refresh := data.RefreshToken
	if refresh == "" && mgr.cred != nil {
		refresh = mgr.cred.RefreshToken
	}

	mgr.cred = &Credential{
		AccessToken:  data.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    mgr.now().Add(time.Duration(expiresIn) * time.Second),
	}
	log.Printf("authenticated successfully, token expires in %d seconds", expiresIn)
	return *mgr.cred, false, nil
}

// exchange prefers refresh-token regeneration when we hold a refresh token,
// and falls back to a full client-credentials exchange.
func (mgr *CredentialManager) exchange(ctx context.Context) (models.TokenData, error) {
	if mgr.cred != nil && mgr.cred.RefreshToken != "" {
		data, err := mgr.client.RegenerateToken(ctx, models.TokenRefreshRequest{
			ClientId:     mgr.clientId,
			ClientSecret: mgr.clientSecret,
			RefreshToken: mgr.cred.RefreshToken,
		})
		if err == nil {
			return data, nil
		}
		log.Printf("token refresh failed, retrying with full exchange: %v", err)
	}

	return mgr.client.GenerateToken(ctx, models.AuthRequest{
		ClientId:     mgr.clientId,
		ClientSecret: mgr.clientSecret,
	})
}

// Invalidate discards the cached credential. Called when a downstream call is
// rejected with a 401/403, forcing exactly one re-exchange before the error
// surfaces upward.
func (mgr *CredentialManager) Invalidate() {
	mgr.cred = nil
}
