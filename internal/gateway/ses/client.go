// Package ses adapts Amazon SES to the identity provider operations the
// provisioning and verification jobs consume: create a sending identity
// for a domain, check whether DKIM signing is confirmed, and tear the
// identity down on domain deletion.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Config carries the credentials and addressing for the SES account the
// service provisions identities in.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	// AccountID is used to synthesize identity ARNs; SES does not
	// return the ARN from CreateEmailIdentity.
	AccountID string
}

func (c Config) validate() error {
	if c.Region == "" {
		return fmt.Errorf("ses: region is required")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return fmt.Errorf("ses: credentials are required")
	}
	return nil
}

// Client is the real SES-backed identity gateway.
type Client struct {
	api       *sesv2.Client
	region    string
	accountID string
}

// New constructs an SES identity gateway from static credentials.
func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	api := sesv2.New(sesv2.Options{}, func(o *sesv2.Options) {
		o.Region = cfg.Region
		o.Credentials = credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)
	})

	return &Client{
		api:       api,
		region:    cfg.Region,
		accountID: cfg.AccountID,
	}, nil
}

// CreateDomainIdentity registers the domain as an SES email identity and
// returns the identity reference plus the DKIM tokens SES expects to see
// as CNAME records, in the order SES returned them.
func (c *Client) CreateDomainIdentity(ctx context.Context, name string) (string, []string, error) {
	out, err := c.api.CreateEmailIdentity(ctx, &sesv2.CreateEmailIdentityInput{
		EmailIdentity: aws.String(name),
	})
	if err != nil {
		return "", nil, fmt.Errorf("create email identity for %q: %w", name, err)
	}

	var tokens []string
	if out.DkimAttributes != nil {
		tokens = out.DkimAttributes.Tokens
	}
	return c.identityRef(name), tokens, nil
}

// CheckDKIMVerification reports whether SES has confirmed DKIM signing
// for the domain. SES flips the DKIM status to SUCCESS only after it has
// observed the CNAME records itself, so this answer is authoritative.
func (c *Client) CheckDKIMVerification(ctx context.Context, name string) (bool, error) {
	out, err := c.api.GetEmailIdentity(ctx, &sesv2.GetEmailIdentityInput{
		EmailIdentity: aws.String(name),
	})
	if err != nil {
		return false, fmt.Errorf("get email identity for %q: %w", name, err)
	}
	if out.DkimAttributes == nil {
		return false, nil
	}
	return out.DkimAttributes.Status == types.DkimStatusSuccess, nil
}

// DeleteDomainIdentity removes the SES identity for the domain.
func (c *Client) DeleteDomainIdentity(ctx context.Context, name string) error {
	_, err := c.api.DeleteEmailIdentity(ctx, &sesv2.DeleteEmailIdentityInput{
		EmailIdentity: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("delete email identity for %q: %w", name, err)
	}
	return nil
}

func (c *Client) identityRef(name string) string {
	return fmt.Sprintf("arn:aws:ses:%s:%s:identity/%s", c.region, c.accountID, name)
}
