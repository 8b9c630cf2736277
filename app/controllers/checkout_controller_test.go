package controllers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/gitwithuli/edgeofict/app/models"
	"github.com/gitwithuli/edgeofict/internal/pkg/tierpolicy"
)

func TestAdmitCryptoCheckout(t *testing.T) {
	storeErr := errors.New("connection refused")

	tests := []struct {
		name      string
		sub       *models.Subscription
		lookupErr error
		wantErr   error
	}{
		{"FirstCheckoutNoRecord", nil, gorm.ErrRecordNotFound, nil},
		{"FreeTierAdmits", &models.Subscription{UserID: 7, Tier: models.TierFree}, nil, nil},
		{"TrialTierAdmits", &models.Subscription{UserID: 7, Tier: models.TierTrial}, nil, nil},
		{"PaidTierRejects", &models.Subscription{UserID: 7, Tier: models.TierPaid}, nil, tierpolicy.ErrAlreadySubscribed},
		// A store outage must fail the request, never bypass the check.
		{"StoreErrorPropagates", nil, storeErr, storeErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := admitCryptoCheckout(tt.sub, tt.lookupErr)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
