package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// ManagementScope is the token scope for resource-manager requests.
const ManagementScope = "https://management.azure.com/.default"

// TokenSource supplies bearer tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed, pre-acquired token.
type StaticToken string

// Token returns the token itself.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("static access token is empty")
	}
	return string(t), nil
}

// DefaultCredential resolves tokens through the environment, workload
// identity, managed identity, and developer CLI credential chain.
type DefaultCredential struct {
	cred *azidentity.DefaultAzureCredential
}

// NewDefaultCredential builds the default credential chain.
func NewDefaultCredential() (*DefaultCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create default credential: %w", err)
	}
	return &DefaultCredential{cred: cred}, nil
}

// Token returns a management-plane access token. The underlying credential
// caches tokens until shortly before they expire.
func (d *DefaultCredential) Token(ctx context.Context) (string, error) {
	tk, err := d.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{ManagementScope}})
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	return tk.Token, nil
}
