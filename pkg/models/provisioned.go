package models

import "context"

// ProvisionedEndpoint is what a ProvisionedTarget hands back once a
// compute endpoint exists and is reachable.
type ProvisionedEndpoint struct {
	Host          string
	Username      string
	Credential    CredentialBundle
	TeardownToken string
}

// ProvisionedTarget is the external collaborator that creates and tears
// down execution endpoints on demand (spec §6); the core never implements
// provisioning itself, only consumes it.
type ProvisionedTarget interface {
	Provision(ctx context.Context) (ProvisionedEndpoint, error)
	Teardown(ctx context.Context, teardownToken string) error
}
