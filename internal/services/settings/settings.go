package settings

import (
	"context"
	"fmt"
	"quickcommerce/internal/client"
	"quickcommerce/internal/model"
)

const ProfilePath = "/settings/profile"

type API interface {
	Get(ctx context.Context, path string, out any, opts ...client.CallOption) (*client.Response, error)
	Put(ctx context.Context, path string, body, out any, opts ...client.CallOption) (*client.Response, error)
}

type Settings struct {
	api API
}

func New(api API) *Settings {
	return &Settings{api: api}
}

func (s *Settings) Profile(ctx context.Context) (*model.Profile, error) {
	const op = "settings.Profile"

	var p model.Profile
	if _, err := s.api.Get(ctx, ProfilePath, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// UpdateProfile sends p and returns the profile as stored by the server.
func (s *Settings) UpdateProfile(ctx context.Context, p model.Profile) (*model.Profile, error) {
	const op = "settings.UpdateProfile"

	var out model.Profile
	if _, err := s.api.Put(ctx, ProfilePath, p, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &out, nil
}
