package config

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/FairForge/s3sweep/internal/signer"
)

// ResolveCredentials implements the bootstrap's credential resolution
// order: explicit flags win, then the standard AWS env vars, then a
// shared credentials file/profile parsed with aws-sdk-go-v2. Only the
// parsed access/secret key pair ever leaves this function — the SDK
// config and any STS/SSO machinery it could have pulled in stays here;
// internal/signer and internal/s3client never import aws-sdk-go-v2.
func ResolveCredentials(ctx context.Context, flagAccessKey, flagSecretKey, region, endpoint, profile string) (signer.Credentials, error) {
	if flagAccessKey != "" && flagSecretKey != "" {
		return signer.Credentials{
			AccessKey: flagAccessKey, SecretKey: flagSecretKey,
			Region: region, Endpoint: endpoint,
		}, nil
	}

	if ak := os.Getenv("AWS_ACCESS_KEY_ID"); ak != "" {
		sk := os.Getenv("AWS_SECRET_ACCESS_KEY")
		if sk == "" {
			return signer.Credentials{}, fmt.Errorf("config: AWS_ACCESS_KEY_ID set without AWS_SECRET_ACCESS_KEY")
		}
		return signer.Credentials{AccessKey: ak, SecretKey: sk, Region: region, Endpoint: endpoint}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return signer.Credentials{}, fmt.Errorf("config: load shared credentials: %w", err)
	}
	creds, err := cfg.Credentials.Retrieve(ctx)
	if err != nil {
		return signer.Credentials{}, fmt.Errorf("config: no usable credentials found (flags, env, or shared credentials file): %w", err)
	}
	return signer.Credentials{
		AccessKey: creds.AccessKeyID, SecretKey: creds.SecretAccessKey,
		Region: region, Endpoint: endpoint,
	}, nil
}
