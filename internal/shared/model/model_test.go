package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDVerificationStatus(t *testing.T) {
	tests := []struct {
		status IDVerificationStatus
		want   string
	}{
		{IDVerificationNotStarted, "not_started"},
		{IDVerificationPending, "pending"},
		{IDVerificationConfirmed, "confirmed"},
		{IDVerificationRejected, "rejected"},
	}

	for _, tt := range tests {
		if string(tt.status) != tt.want {
			t.Errorf("IDVerificationStatus = %v, want %v", tt.status, tt.want)
		}
		assert.True(t, tt.status.Valid())
	}
	assert.False(t, IDVerificationStatus("approved").Valid())
}

func TestArtisanProfile_Clone(t *testing.T) {
	now := time.Now()
	reason := "blurry"
	p := NewArtisanProfile("a1", "u1", now)
	p.IDVerificationPendingAt = &now
	p.RejectionReason = &reason

	c := p.Clone()
	*c.IDVerificationPendingAt = now.Add(time.Hour)
	*c.RejectionReason = "changed"

	assert.Equal(t, now, *p.IDVerificationPendingAt)
	assert.Equal(t, "blurry", *p.RejectionReason)
	assert.Nil(t, (*ArtisanProfile)(nil).Clone())
}

func TestArtisanProfile_CheckInvariants(t *testing.T) {
	now := time.Now()
	reason := "bad photo"

	tests := []struct {
		name    string
		mutate  func(p *ArtisanProfile)
		wantErr bool
	}{
		{"new profile", func(p *ArtisanProfile) {}, false},
		{"pending with timestamp", func(p *ArtisanProfile) {
			p.IDVerificationStatus = IDVerificationPending
			p.IDVerificationPendingAt = &now
		}, false},
		{"pending without timestamp", func(p *ArtisanProfile) {
			p.IDVerificationStatus = IDVerificationPending
		}, true},
		{"pending_at outside pending", func(p *ArtisanProfile) {
			p.IDVerificationPendingAt = &now
		}, true},
		{"rejected keeps pending_at", func(p *ArtisanProfile) {
			p.IDVerificationStatus = IDVerificationRejected
			p.RejectionReason = &reason
			p.IDVerificationPendingAt = &now
		}, true},
		{"confirmed active", func(p *ArtisanProfile) {
			p.IDVerificationStatus = IDVerificationConfirmed
			p.Status = ArtisanStatusActive
			p.IDVerifiedAt = &now
		}, false},
		{"confirmed without verified_at", func(p *ArtisanProfile) {
			p.IDVerificationStatus = IDVerificationConfirmed
			p.Status = ArtisanStatusActive
		}, true},
		{"active but not confirmed", func(p *ArtisanProfile) {
			p.Status = ArtisanStatusActive
		}, true},
		{"rejected keeps reason", func(p *ArtisanProfile) {
			p.IDVerificationStatus = IDVerificationRejected
			p.RejectionReason = &reason
		}, false},
		{"reason outside rejected", func(p *ArtisanProfile) {
			p.RejectionReason = &reason
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArtisanProfile("a1", "u1", now)
			tt.mutate(p)
			err := p.CheckInvariants()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRoleSet(t *testing.T) {
	s := NewRoleSet(RoleBuyer, RoleArtisan)

	assert.True(t, s.Has(RoleArtisan))
	assert.False(t, s.Has(RoleAdmin))
	assert.True(t, s.HasAny(RoleAdmin, RoleBuyer))
	assert.Equal(t, []Role{RoleArtisan, RoleBuyer}, s.List())
	assert.Equal(t, RoleArtisan, s.Primary())
	assert.Equal(t, RoleBuyer, NewRoleSet().Primary())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["artisan","buyer"]`, string(data))

	var decoded RoleSet
	require.NoError(t, json.Unmarshal([]byte(`["admin"]`), &decoded))
	assert.True(t, decoded.Has(RoleAdmin))
}

func TestUser_ExternalProvider(t *testing.T) {
	u := &User{ID: "u1"}
	assert.Equal(t, "", u.ExternalProvider())
	assert.False(t, u.HasVerifiedEmail())

	gid := "g-123"
	u.GoogleID = &gid
	assert.Equal(t, "google", u.ExternalProvider())
}
