// Package upstream binds the abstract Upstream Client contract (connect,
// paginated search, user lookup) onto the AT Protocol (Bluesky) surface via
// github.com/bluesky-social/indigo, the same way qntx-atproto bound QNTX's
// timeline/profile calls onto it.
package upstream

import (
	"context"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/xrpc"
	"golang.org/x/time/rate"

	"github.com/teranos/kcore-analytics/errors"
	"github.com/teranos/kcore-analytics/internal/httpclient"
	"github.com/teranos/kcore-analytics/logger"
)

// requestBudget paces proactive page requests against spec.md §4.5's
// 450-requests-per-15-minutes credential budget, so a single client backs
// off before the upstream ever has to return a 429.
const requestBudget = 450.0 / (15 * 60)

// Credential is one entry of the credentials file (spec.md §6.2): the
// field names are kept as the original spec names them, bound here to the
// AT Protocol handle + app password.
type Credential struct {
	ID                string `json:"id"`
	OAuthToken        string `json:"oauth_token"`        // handle (identifier)
	OAuthTokenSecret  string `json:"oauth_token_secret"` // app password
}

// Client is a connected Upstream Client session bound to one credential.
type Client struct {
	xrpc    *xrpc.Client
	http    *httpclient.SaferClient
	limiter *rate.Limiter

	// seqMu guards the per-millisecond sequence counter used to mint
	// strictly monotonic synthetic tweet IDs (SPEC_FULL.md §9.1).
	seqMu  chan struct{}
	seqMS  int64
	seqCtr int64
}

// Connect opens an authenticated session against baseURL for the given
// credential, matching qntx-atproto's createSession.
func Connect(ctx context.Context, baseURL string, cred Credential) (*Client, error) {
	safer := httpclient.NewSaferClient(30 * time.Second)
	xc := &xrpc.Client{Client: safer.Client, Host: baseURL}

	input := &comatproto.ServerCreateSession_Input{
		Identifier: cred.OAuthToken,
		Password:   cred.OAuthTokenSecret,
	}
	session, err := comatproto.ServerCreateSession(ctx, xc, input)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create session with %s for %s", baseURL, cred.ID)
	}
	xc.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Handle:     session.Handle,
		Did:        session.Did,
	}

	return &Client{
		xrpc:    xc,
		http:    safer,
		limiter: rate.NewLimiter(rate.Limit(requestBudget), 1),
		seqMu:   make(chan struct{}, 1),
	}, nil
}

// refresh renews the session's access token, matching qntx-atproto's
// refreshSession.
func (c *Client) refresh(ctx context.Context) error {
	if c.xrpc.Auth == nil {
		return errors.New("upstream: no auth session to refresh")
	}
	refreshClient := &xrpc.Client{
		Client: c.xrpc.Client,
		Host:   c.xrpc.Host,
		Auth:   &xrpc.AuthInfo{AccessJwt: c.xrpc.Auth.RefreshJwt},
	}
	session, err := comatproto.ServerRefreshSession(ctx, refreshClient)
	if err != nil {
		return errors.Wrapf(err, "failed to refresh session at %s", c.xrpc.Host)
	}
	c.xrpc.Auth.AccessJwt = session.AccessJwt
	c.xrpc.Auth.RefreshJwt = session.RefreshJwt
	c.xrpc.Auth.Handle = session.Handle
	c.xrpc.Auth.Did = session.Did
	logger.Logger.Debugw("upstream session refreshed", "did", session.Did)
	return nil
}

// Disconnect releases the session. AT Protocol sessions have no explicit
// server-side teardown; this exists so callers have a symmetric lifecycle
// to reconnect-on-error without leaking the old xrpc.Client.
func (c *Client) Disconnect() {
	c.xrpc.Auth = nil
}
